package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayment returns the hex HMAC-SHA256 of "intentID|paymentID".
func SignPayment(secret, intentID, paymentID string) string {
	return sign(secret, []byte(intentID+"|"+paymentID))
}

// VerifyPaymentSignature checks a client-submitted payment signature in
// constant time.
func VerifyPaymentSignature(secret, intentID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(SignPayment(secret, intentID, paymentID), signature)
}

// SignWebhook returns the hex HMAC-SHA256 of a raw webhook body.
func SignWebhook(secret string, body []byte) string {
	return sign(secret, body)
}

// VerifyWebhookSignature checks the signature header of a raw webhook body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(SignWebhook(secret, body), signature)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(got))))
}
