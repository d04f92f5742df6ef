package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentSignatureMatchesKnownVector(t *testing.T) {
	const want = "1d4a2521a30a15927ca84bd5758a04ec46122ca9c46cd133024272425153f5e0"
	assert.Equal(t, want, SignPayment("topsecret", "order_123", "pay_456"))
	assert.True(t, VerifyPaymentSignature("topsecret", "order_123", "pay_456", want))
	assert.True(t, VerifyPaymentSignature("topsecret", "order_123", "pay_456", strings.ToUpper(want)))
}

func TestPaymentSignatureRejectsTampering(t *testing.T) {
	sig := SignPayment("topsecret", "order_123", "pay_456")
	assert.False(t, VerifyPaymentSignature("topsecret", "order_123", "pay_457", sig))
	assert.False(t, VerifyPaymentSignature("other", "order_123", "pay_456", sig))
	assert.False(t, VerifyPaymentSignature("topsecret", "order_123", "pay_456", ""))
	assert.False(t, VerifyPaymentSignature("", "order_123", "pay_456", sig))
}

func TestWebhookSignatureOverRawBody(t *testing.T) {
	body := []byte(`{"event_id":"evt_1"}`)
	const want = "971620b06845f66cc35a45ea9bc08cebc6371935bcd3075d769996ca8599fb77"
	assert.Equal(t, want, SignWebhook("hooksecret", body))
	assert.True(t, VerifyWebhookSignature("hooksecret", body, want))
	assert.False(t, VerifyWebhookSignature("hooksecret", []byte(`{"event_id":"evt_2"}`), want))
}
