package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
)

func signBody(key string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = ginkgo.Describe("ParseWebhookEvent", func() {
	ginkgo.It("should normalize the flat payload shape", func() {
		body := []byte(`{
			"event_type": "payment_succeeded",
			"payment_id": "pay_123",
			"status": "succeeded",
			"amount": 5000,
			"currency": "USD",
			"metadata": {"cart_id": "cart_42"}
		}`)

		event, err := ParseWebhookEvent(body)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(event.Type).To(gomega.Equal(EventPaymentSucceeded))
		gomega.Expect(event.EntityID).To(gomega.Equal("pay_123"))
		gomega.Expect(event.Amount).To(gomega.Equal(int64(5000)))
		gomega.Expect(event.CartID()).To(gomega.Equal("cart_42"))
	})

	ginkgo.It("should normalize the nested content.object shape", func() {
		body := []byte(`{
			"event_type": "payment_authorized",
			"content": {
				"type": "payment_details",
				"object": {
					"payment_id": "pay_456",
					"status": "requires_capture",
					"amount": 1200,
					"currency": "EUR",
					"metadata": {"cart_id": "cart_7"}
				}
			}
		}`)

		event, err := ParseWebhookEvent(body)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(event.Type).To(gomega.Equal(EventPaymentAuthorized))
		gomega.Expect(event.EntityID).To(gomega.Equal("pay_456"))
		gomega.Expect(event.Currency).To(gomega.Equal("EUR"))
		gomega.Expect(event.CartID()).To(gomega.Equal("cart_7"))
	})

	ginkgo.It("should key refunds on the refund id", func() {
		body := []byte(`{
			"event_type": "refund_processed",
			"payment_id": "pay_456",
			"refund_id": "ref_9",
			"amount": 600
		}`)

		event, err := ParseWebhookEvent(body)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(event.EntityID).To(gomega.Equal("ref_9"))
		gomega.Expect(event.PaymentID).To(gomega.Equal("pay_456"))
	})

	ginkgo.It("should reject unknown event types", func() {
		_, err := ParseWebhookEvent([]byte(`{"event_type":"payment_disputed","payment_id":"pay_1"}`))
		gomega.Expect(err).To(gomega.HaveOccurred())
		appErr, ok := errors.IsAppError(err)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(appErr.Code).To(gomega.Equal(errors.ErrCodeUnsupportedEventType))
	})

	ginkgo.It("should reject malformed bodies", func() {
		_, err := ParseWebhookEvent([]byte(`{not json`))
		gomega.Expect(err).To(gomega.HaveOccurred())
		appErr, ok := errors.IsAppError(err)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(appErr.Code).To(gomega.Equal(errors.ErrCodeMalformedPayload))
	})

	ginkgo.It("should reject payloads without an entity id", func() {
		_, err := ParseWebhookEvent([]byte(`{"event_type":"payment_failed"}`))
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = ginkgo.Describe("SignatureVerifier", func() {
	const hashKey = "test-hash-key"

	ginkgo.It("should accept a correctly signed body", func() {
		verifier := NewSignatureVerifier(hashKey)
		body := []byte(`{"event_type":"payment_succeeded","payment_id":"pay_1"}`)

		err := verifier.Verify(body, signBody(hashKey, body))
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
	})

	ginkgo.It("should reject a missing signature", func() {
		verifier := NewSignatureVerifier(hashKey)
		err := verifier.Verify([]byte(`{}`), "")
		gomega.Expect(err).To(gomega.MatchError(errors.ErrMissingSignature))
	})

	ginkgo.It("should reject a tampered body", func() {
		verifier := NewSignatureVerifier(hashKey)
		body := []byte(`{"event_type":"payment_succeeded","payment_id":"pay_1"}`)
		signature := signBody(hashKey, body)

		tampered := []byte(`{"event_type":"payment_succeeded","payment_id":"pay_2"}`)
		err := verifier.Verify(tampered, signature)
		gomega.Expect(err).To(gomega.MatchError(errors.ErrInvalidSignature))
	})

	ginkgo.It("should reject a signature from another key", func() {
		verifier := NewSignatureVerifier(hashKey)
		body := []byte(`{"event_type":"payment_succeeded"}`)
		err := verifier.Verify(body, signBody("other-key", body))
		gomega.Expect(err).To(gomega.MatchError(errors.ErrInvalidSignature))
	})
})
