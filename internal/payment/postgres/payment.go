package postgres

import (
	"context"
	"encoding/json"
	"time"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	datamodel "github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/hyperswitch-gateway/internal/payment"
	"gorm.io/gorm"
)

// PaymentRepository implements the payment.Repository interface using GORM
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) paymentpkg.Repository {
	return &PaymentRepository{db: db}
}

// Create saves a new payment record to the database
func (r *PaymentRepository) Create(ctx context.Context, p *datamodel.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*datamodel.Payment, error) {
	var p datamodel.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByProviderTransactionID retrieves a payment by the gateway's transaction id
func (r *PaymentRepository) GetByProviderTransactionID(ctx context.Context, txnID string) (*datamodel.Payment, error) {
	var p datamodel.Payment
	err := r.db.WithContext(ctx).Where("provider_transaction_id = ?", txnID).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByCartID retrieves the most recent payment for a cart
func (r *PaymentRepository) GetByCartID(ctx context.Context, cartID string) (*datamodel.Payment, error) {
	var p datamodel.Payment
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update updates an existing payment record
func (r *PaymentRepository) Update(ctx context.Context, p *datamodel.Payment) error {
	p.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(p).Error
}

// UpdateStatusIf conditionally transitions the payment status. The WHERE
// clause carries the allowed source statuses so racing handlers cannot
// overwrite a terminal state; RowsAffected reports whether this call won.
func (r *PaymentRepository) UpdateStatusIf(ctx context.Context, id int64, to datamodel.Status, allowedFrom []datamodel.Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&datamodel.Payment{}).
		Where("id = ? AND status IN ?", id, allowedFrom).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MergeRaw replaces the stored gateway payload for a payment
func (r *PaymentRepository) MergeRaw(ctx context.Context, id int64, raw json.RawMessage) error {
	return r.db.WithContext(ctx).Model(&datamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"raw":        raw,
			"updated_at": time.Now(),
		}).Error
}

// SetProcessingStartedAt stamps when the gateway reported the payment processing
func (r *PaymentRepository) SetProcessingStartedAt(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&datamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_started_at": at,
			"updated_at":            time.Now(),
		}).Error
}

// ListStuckPending retrieves pending payments whose processing started
// before the cutoff, for the reconcile worker
func (r *PaymentRepository) ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]*datamodel.Payment, error) {
	var payments []*datamodel.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?",
			datamodel.StatusPending, olderThan).
		Order("processing_started_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// RefundRepository implements the payment.RefundRepository interface using GORM
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *gorm.DB) paymentpkg.RefundRepository {
	return &RefundRepository{db: db}
}

// Create saves a new refund sub-record
func (r *RefundRepository) Create(ctx context.Context, refund *datamodel.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// GetPendingByPaymentID retrieves the oldest pending refund for a payment
func (r *RefundRepository) GetPendingByPaymentID(ctx context.Context, paymentID int64) (*datamodel.Refund, error) {
	var refund datamodel.Refund
	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND status = ?", paymentID, datamodel.RefundStatusPending).
		Order("created_at ASC").
		First(&refund).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrRefundNotFound
		}
		return nil, err
	}
	return &refund, nil
}

// MarkSucceeded finalizes a refund and stores the gateway metadata
func (r *RefundRepository) MarkSucceeded(ctx context.Context, id int64, metadata json.RawMessage) error {
	updates := map[string]interface{}{
		"status":     datamodel.RefundStatusSucceeded,
		"updated_at": time.Now(),
	}
	if len(metadata) > 0 {
		updates["metadata"] = metadata
	}
	return r.db.WithContext(ctx).Model(&datamodel.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SumSucceededByPaymentID totals the refunded minor-unit amount for a payment
func (r *RefundRepository) SumSucceededByPaymentID(ctx context.Context, paymentID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&datamodel.Refund{}).
		Where("payment_id = ? AND status = ?", paymentID, datamodel.RefundStatusSucceeded).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
