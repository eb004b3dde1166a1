package gateway

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
)

var _ = ginkgo.Describe("MapStatus", func() {
	ginkgo.It("should map succeeded to authorized", func() {
		gomega.Expect(MapStatus(ProcessorStatusSucceeded)).To(gomega.Equal(payment.StatusAuthorized))
	})

	ginkgo.It("should map failed to error", func() {
		gomega.Expect(MapStatus(ProcessorStatusFailed)).To(gomega.Equal(payment.StatusError))
	})

	ginkgo.It("should map every requires_* status to requires_more", func() {
		for _, status := range []string{
			ProcessorStatusRequiresCapture,
			ProcessorStatusRequiresConfirmation,
			ProcessorStatusRequiresPaymentMethod,
			ProcessorStatusRequiresCustomerAction,
			ProcessorStatusRequiresMerchantAction,
		} {
			gomega.Expect(MapStatus(status)).To(gomega.Equal(payment.StatusRequiresMore), status)
		}
	})

	ginkgo.It("should map anything unknown to pending", func() {
		gomega.Expect(MapStatus(ProcessorStatusProcessing)).To(gomega.Equal(payment.StatusPending))
		gomega.Expect(MapStatus("partially_captured")).To(gomega.Equal(payment.StatusPending))
		gomega.Expect(MapStatus("")).To(gomega.Equal(payment.StatusPending))
	})
})

var _ = ginkgo.Describe("CanCancel", func() {
	ginkgo.It("should allow cancel only in customer-side wait states", func() {
		cancelable := []string{
			ProcessorStatusRequiresPaymentMethod,
			ProcessorStatusRequiresCapture,
			ProcessorStatusRequiresConfirmation,
			ProcessorStatusRequiresCustomerAction,
		}
		for _, status := range cancelable {
			gomega.Expect(CanCancel(status)).To(gomega.BeTrue(), status)
		}

		for _, status := range []string{
			ProcessorStatusSucceeded,
			ProcessorStatusFailed,
			ProcessorStatusCancelled,
			ProcessorStatusProcessing,
			ProcessorStatusRequiresMerchantAction,
			"",
		} {
			gomega.Expect(CanCancel(status)).To(gomega.BeFalse(), status)
		}
	})
})
