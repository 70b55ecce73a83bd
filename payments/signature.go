package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the checkout callback signature over "orderId|paymentId".
func VerifyPaymentSignature(orderID, paymentID, signature, keySecret string) bool {
	return equal(Sign([]byte(orderID+"|"+paymentID), keySecret), signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the raw request body.
func VerifyWebhookSignature(body []byte, signature, webhookSecret string) bool {
	if webhookSecret == "" || signature == "" {
		return false
	}
	return equal(Sign(body, webhookSecret), signature)
}

func equal(expected, actual string) bool {
	return hmac.Equal([]byte(expected), []byte(actual))
}
