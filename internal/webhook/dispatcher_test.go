package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	datamodel "github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/events"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
	"github.com/frahmantamala/hyperswitch-gateway/internal/host"
	"github.com/frahmantamala/hyperswitch-gateway/pkg/logger"
)

// mockPaymentRepo keeps payment records in memory with the same
// conditional-update semantics as the gorm repository
type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[int64]*datamodel.Payment
	nextID   int64
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[int64]*datamodel.Payment), nextID: 1}
}

func (m *mockPaymentRepo) add(p *datamodel.Payment) *datamodel.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	if p.ProviderID == "" {
		p.ProviderID = "hyperswitch"
	}
	m.payments[p.ID] = p
	return p
}

func (m *mockPaymentRepo) Create(_ context.Context, p *datamodel.Payment) error {
	m.add(p)
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id int64) (*datamodel.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, errors.ErrPaymentNotFound
}

func (m *mockPaymentRepo) GetByProviderTransactionID(_ context.Context, txnID string) (*datamodel.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderTransactionID == txnID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, errors.ErrPaymentNotFound
}

func (m *mockPaymentRepo) GetByCartID(_ context.Context, cartID string) (*datamodel.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.CartID == cartID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, errors.ErrPaymentNotFound
}

func (m *mockPaymentRepo) Update(_ context.Context, p *datamodel.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.payments[p.ID] = &copied
	return nil
}

func (m *mockPaymentRepo) UpdateStatusIf(_ context.Context, id int64, to datamodel.Status, allowedFrom []datamodel.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, nil
	}
	for _, from := range allowedFrom {
		if p.Status == from {
			p.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentRepo) MergeRaw(_ context.Context, id int64, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.Raw = raw
	}
	return nil
}

func (m *mockPaymentRepo) SetProcessingStartedAt(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.ProcessingStartedAt = &at
	}
	return nil
}

func (m *mockPaymentRepo) ListStuckPending(_ context.Context, olderThan time.Time, limit int) ([]*datamodel.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stuck []*datamodel.Payment
	for _, p := range m.payments {
		if p.Status == datamodel.StatusPending && p.ProcessingStartedAt != nil && p.ProcessingStartedAt.Before(olderThan) {
			copied := *p
			stuck = append(stuck, &copied)
			if len(stuck) == limit {
				break
			}
		}
	}
	return stuck, nil
}

func (m *mockPaymentRepo) status(id int64) datamodel.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id].Status
}

type mockRefundRepo struct {
	mu      sync.Mutex
	refunds map[int64]*datamodel.Refund
	nextID  int64
}

func newMockRefundRepo() *mockRefundRepo {
	return &mockRefundRepo{refunds: make(map[int64]*datamodel.Refund), nextID: 1}
}

func (m *mockRefundRepo) Create(_ context.Context, r *datamodel.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	m.refunds[r.ID] = r
	return nil
}

func (m *mockRefundRepo) GetPendingByPaymentID(_ context.Context, paymentID int64) (*datamodel.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.Status == datamodel.RefundStatusPending {
			copied := *r
			return &copied, nil
		}
	}
	return nil, errors.ErrRefundNotFound
}

func (m *mockRefundRepo) MarkSucceeded(_ context.Context, id int64, metadata json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.refunds[id]; ok {
		r.Status = datamodel.RefundStatusSucceeded
		r.Metadata = metadata
	}
	return nil
}

func (m *mockRefundRepo) SumSucceededByPaymentID(_ context.Context, paymentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.Status == datamodel.RefundStatusSucceeded {
			total += r.Amount
		}
	}
	return total, nil
}

type mockCartStore struct {
	mu               sync.Mutex
	sessions         map[string]*host.PaymentSession
	authorized       []string
	markedPending    []string
	authorizeFailure error
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{sessions: make(map[string]*host.PaymentSession)}
}

func (m *mockCartStore) RetrieveSession(_ context.Context, cartID string) (*host.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[cartID], nil
}

func (m *mockCartStore) AuthorizePayment(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authorizeFailure != nil {
		return m.authorizeFailure
	}
	m.authorized = append(m.authorized, cartID)
	return nil
}

func (m *mockCartStore) MarkSessionPending(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedPending = append(m.markedPending, cartID)
	return nil
}

func (m *mockCartStore) authorizedCarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authorized...)
}

func (m *mockCartStore) pendingCarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.markedPending...)
}

func webhookBody(eventType, paymentID, cartID string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event_type": eventType,
		"payment_id": paymentID,
		"metadata":   map[string]interface{}{"cart_id": cartID},
	})
	return body
}

func mustParse(body []byte) *gateway.WebhookEvent {
	event, err := gateway.ParseWebhookEvent(body)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return event
}

var _ = ginkgo.Describe("Dispatcher", func() {
	var (
		repo       *mockPaymentRepo
		refunds    *mockRefundRepo
		carts      *mockCartStore
		store      *memoryStore
		bus        *events.EventBus
		dispatcher *Dispatcher
		ctx        context.Context

		published   chan events.Event
		maxWaitTime = time.Second
	)

	newDispatcher := func(cfg errors.WebhookConfig) *Dispatcher {
		guard := NewGuard(store, logger.LoggerWrapper())
		return NewDispatcher(repo, refunds, guard, bus, carts, cfg, logger.LoggerWrapper())
	}

	subscribeAll := func() {
		for _, eventType := range []string{
			events.EventTypePaymentAuthorized,
			events.EventTypePaymentSucceeded,
			events.EventTypePaymentProcessing,
			events.EventTypePaymentFailed,
			events.EventTypeRefundProcessed,
		} {
			bus.Subscribe(eventType, func(_ context.Context, e events.Event) error {
				published <- e
				return nil
			})
		}
	}

	ginkgo.BeforeEach(func() {
		repo = newMockPaymentRepo()
		refunds = newMockRefundRepo()
		carts = newMockCartStore()
		store = newMemoryStore()
		bus = events.NewEventBus(logger.LoggerWrapper())
		published = make(chan events.Event, 16)
		subscribeAll()
		ctx = context.Background()

		dispatcher = newDispatcher(errors.WebhookConfig{})
	})

	ginkgo.AfterEach(func() {
		dispatcher.Stop()
	})

	ginkgo.Describe("payment_authorized", func() {
		ginkgo.It("should transition pending to authorized and emit the domain event", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_1",
				CartID:                "cart_1",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_authorized", "pay_1", "cart_1")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
			gomega.Eventually(published, maxWaitTime).Should(gomega.Receive())
			gomega.Expect(carts.authorizedCarts()).To(gomega.ContainElement("cart_1"))
		})

		ginkgo.It("should not trigger the host hook when a pending session is attached", func() {
			repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_1",
				CartID:                "cart_1",
				Status:                datamodel.StatusPending,
			})
			carts.sessions["cart_1"] = &host.PaymentSession{
				ID:     "ps_1",
				CartID: "cart_1",
				Status: host.SessionStatusPending,
			}

			body := webhookBody("payment_authorized", "pay_1", "cart_1")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(carts.authorizedCarts()).To(gomega.BeEmpty())
		})

		ginkgo.It("should roll the payment to error when the host authorization fails", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_1",
				CartID:                "cart_1",
				Status:                datamodel.StatusPending,
			})
			carts.authorizeFailure = fmt.Errorf("cart completion rejected")

			body := webhookBody("payment_authorized", "pay_1", "cart_1")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusError))
		})

		ginkgo.It("should be a no-op when the payment is already authorized", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_1",
				CartID:                "cart_1",
				Status:                datamodel.StatusAuthorized,
			})

			body := webhookBody("payment_authorized", "pay_1", "cart_1")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
			gomega.Consistently(published, 50*time.Millisecond).ShouldNot(gomega.Receive())
		})
	})

	ginkgo.Describe("payment_succeeded", func() {
		ginkgo.It("should treat success as an authorization signal", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_2",
				CartID:                "cart_2",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_succeeded", "pay_2", "cart_2")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))

			var received events.Event
			gomega.Eventually(published, maxWaitTime).Should(gomega.Receive(&received))
			gomega.Expect(received.EventType()).To(gomega.Equal(events.EventTypePaymentSucceeded))
		})
	})

	ginkgo.Describe("payment_failed", func() {
		ginkgo.It("should move the payment to error and carry the failure reason", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_3",
				CartID:                "cart_3",
				Status:                datamodel.StatusPending,
			})

			body, _ := json.Marshal(map[string]interface{}{
				"event_type":    "payment_failed",
				"payment_id":    "pay_3",
				"error_message": "card declined",
				"metadata":      map[string]interface{}{"cart_id": "cart_3"},
			})
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusError))

			var received events.Event
			gomega.Eventually(published, maxWaitTime).Should(gomega.Receive(&received))
			failedEvent, ok := received.(*events.PaymentEvent)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(failedEvent.FailureReason).To(gomega.Equal("card declined"))
		})

		ginkgo.It("should leave a canceled payment untouched", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_3a",
				CartID:                "cart_3a",
				Status:                datamodel.StatusCanceled,
			})

			body := webhookBody("payment_failed", "pay_3a", "cart_3a")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusCanceled))
			gomega.Consistently(published, 50*time.Millisecond).ShouldNot(gomega.Receive())
		})

		ginkgo.It("should leave a captured payment untouched", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_3b",
				CartID:                "cart_3b",
				Status:                datamodel.StatusCaptured,
			})

			body := webhookBody("payment_failed", "pay_3b", "cart_3b")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusCaptured))
			gomega.Consistently(published, 50*time.Millisecond).ShouldNot(gomega.Receive())
		})
	})

	ginkgo.Describe("payment_processing", func() {
		ginkgo.It("should stamp processing start and synthesize a failure after the timeout", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_4",
				CartID:                "cart_4",
				Status:                datamodel.StatusPending,
			})

			dispatcher = newDispatcher(errors.WebhookConfig{ProcessingTimeout: 20 * time.Millisecond})

			body := webhookBody("payment_processing", "pay_4", "cart_4")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			loaded, err := repo.GetByID(ctx, rec.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(loaded.ProcessingStartedAt).ToNot(gomega.BeNil())

			// the watchdog fires and fails the payment through the pipeline
			gomega.Eventually(func() datamodel.Status {
				return repo.status(rec.ID)
			}, maxWaitTime).Should(gomega.Equal(datamodel.StatusError))

			gomega.Expect(store.get("webhook_payment_failed_pay_4")).ToNot(gomega.BeNil())
		})

		ginkgo.It("should move a requires_more payment back to pending so the watchdog can reach it", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_4a",
				CartID:                "cart_4a",
				Status:                datamodel.StatusRequiresMore,
			})

			dispatcher = newDispatcher(errors.WebhookConfig{ProcessingTimeout: 20 * time.Millisecond})

			body := webhookBody("payment_processing", "pay_4a", "cart_4a")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusPending))

			gomega.Eventually(func() datamodel.Status {
				return repo.status(rec.ID)
			}, maxWaitTime).Should(gomega.Equal(datamodel.StatusError))
		})

		ginkgo.It("should mark the cart's payment session pending", func() {
			repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_4b",
				CartID:                "cart_4b",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_processing", "pay_4b", "cart_4b")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(carts.pendingCarts()).To(gomega.ContainElement("cart_4b"))
		})

		ginkgo.It("should not fail a payment that settles before the timeout", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_5",
				CartID:                "cart_5",
				Status:                datamodel.StatusPending,
			})

			dispatcher = newDispatcher(errors.WebhookConfig{ProcessingTimeout: 50 * time.Millisecond})

			processingBody := webhookBody("payment_processing", "pay_5", "cart_5")
			gomega.Expect(dispatcher.Dispatch(ctx, mustParse(processingBody), RecordMeta{Params: processingBody})).To(gomega.Succeed())

			authorizedBody := webhookBody("payment_authorized", "pay_5", "cart_5")
			gomega.Expect(dispatcher.Dispatch(ctx, mustParse(authorizedBody), RecordMeta{Params: authorizedBody})).To(gomega.Succeed())

			gomega.Consistently(func() datamodel.Status {
				return repo.status(rec.ID)
			}, 150*time.Millisecond).Should(gomega.Equal(datamodel.StatusAuthorized))
		})

		ginkgo.It("should ignore a processing notification after a terminal state", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_6",
				CartID:                "cart_6",
				Status:                datamodel.StatusError,
			})

			body := webhookBody("payment_processing", "pay_6", "cart_6")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			loaded, _ := repo.GetByID(ctx, rec.ID)
			gomega.Expect(loaded.ProcessingStartedAt).To(gomega.BeNil())
			gomega.Expect(loaded.Status).To(gomega.Equal(datamodel.StatusError))
		})
	})

	ginkgo.Describe("refund_processed", func() {
		ginkgo.It("should mark the pending refund succeeded without touching the payment", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_7",
				CartID:                "cart_7",
				Status:                datamodel.StatusCaptured,
			})
			refund := &datamodel.Refund{PaymentID: rec.ID, Amount: 500, Status: datamodel.RefundStatusPending}
			gomega.Expect(refunds.Create(ctx, refund)).To(gomega.Succeed())

			body, _ := json.Marshal(map[string]interface{}{
				"event_type": "refund_processed",
				"payment_id": "pay_7",
				"refund_id":  "ref_1",
				"metadata":   map[string]interface{}{"cart_id": "cart_7"},
			})
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusCaptured))

			_, err = refunds.GetPendingByPaymentID(ctx, rec.ID)
			gomega.Expect(err).To(gomega.MatchError(errors.ErrRefundNotFound))
		})

		ginkgo.It("should error when no refund record matches", func() {
			repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_8",
				CartID:                "cart_8",
				Status:                datamodel.StatusCaptured,
			})

			body, _ := json.Marshal(map[string]interface{}{
				"event_type": "refund_processed",
				"payment_id": "pay_8",
				"refund_id":  "ref_2",
				"metadata":   map[string]interface{}{"cart_id": "cart_8"},
			})
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).To(gomega.MatchError(errors.ErrRefundNotFound))
		})
	})

	ginkgo.Describe("payment lookup", func() {
		ginkgo.It("should fall back to the transaction id when the cart is unknown", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_9",
				CartID:                "cart_other",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_succeeded", "pay_9", "cart_missing")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
		})

		ginkgo.It("should skip cart matches that belong to another provider", func() {
			foreign := repo.add(&datamodel.Payment{
				ProviderTransactionID: "other_txn",
				ProviderID:            "stripe",
				CartID:                "cart_10",
				Status:                datamodel.StatusPending,
			})
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_10",
				CartID:                "cart_10_actual",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_succeeded", "pay_10", "cart_10")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
			gomega.Expect(repo.status(foreign.ID)).To(gomega.Equal(datamodel.StatusPending))
		})

		ginkgo.It("should resolve through the cart's attached session as a last resort", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_11",
				CartID:                "cart_recorded_elsewhere",
				Status:                datamodel.StatusPending,
			})
			sessionData, _ := json.Marshal(map[string]string{"payment_id": "pay_11"})
			carts.sessions["cart_11"] = &host.PaymentSession{
				ID:     "ps_11",
				CartID: "cart_11",
				Status: host.SessionStatusPending,
				Data:   sessionData,
			}

			// no payment id on the event, only the cart reference
			body := webhookBody("payment_succeeded", "pay_11", "cart_11")
			event := &gateway.WebhookEvent{
				Type:     gateway.EventPaymentSucceeded,
				EntityID: "pay_11",
				Metadata: map[string]interface{}{"cart_id": "cart_11"},
				Raw:      body,
			}
			err := dispatcher.Dispatch(ctx, event, RecordMeta{Params: body})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
		})

		ginkgo.It("should fail with PaymentNotFound when nothing resolves", func() {
			body := webhookBody("payment_succeeded", "pay_unknown", "cart_unknown")
			err := dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})

			gomega.Expect(err).To(gomega.MatchError(errors.ErrPaymentNotFound))
		})
	})

	ginkgo.Describe("duplicate deliveries", func() {
		ginkgo.It("should apply the transition once across redeliveries", func() {
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_12",
				CartID:                "cart_12",
				Status:                datamodel.StatusPending,
			})

			body := webhookBody("payment_succeeded", "pay_12", "cart_12")
			gomega.Expect(dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})).To(gomega.Succeed())
			gomega.Expect(dispatcher.Dispatch(ctx, mustParse(body), RecordMeta{Params: body})).To(gomega.Succeed())

			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusAuthorized))
			gomega.Eventually(published, maxWaitTime).Should(gomega.Receive())
			gomega.Consistently(published, 50*time.Millisecond).ShouldNot(gomega.Receive())
		})
	})

	ginkgo.Describe("ReconcileStuck", func() {
		ginkgo.It("should fail payments stuck pending past the processing timeout", func() {
			started := time.Now().Add(-time.Hour)
			rec := repo.add(&datamodel.Payment{
				ProviderTransactionID: "pay_13",
				CartID:                "cart_13",
				Status:                datamodel.StatusPending,
				ProcessingStartedAt:   &started,
			})

			dispatcher = newDispatcher(errors.WebhookConfig{ProcessingTimeout: 30 * time.Minute})

			n, err := dispatcher.ReconcileStuck(ctx, 10)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(n).To(gomega.Equal(1))
			gomega.Expect(repo.status(rec.ID)).To(gomega.Equal(datamodel.StatusError))
		})
	})
})
