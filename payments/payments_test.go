package payments

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPaymentSignature(t *testing.T) {
	secret := "key_secret"
	sig := Sign([]byte("order_123|pay_456"), secret)

	assert.True(t, VerifyPaymentSignature("order_123", "pay_456", sig, secret))
	assert.False(t, VerifyPaymentSignature("order_123", "pay_999", sig, secret))
	assert.False(t, VerifyPaymentSignature("order_123", "pay_456", sig, "other"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := Sign(body, "whsec")

	assert.True(t, VerifyWebhookSignature(body, sig, "whsec"))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), sig, "whsec"))
	assert.False(t, VerifyWebhookSignature(body, "", "whsec"))
	assert.False(t, VerifyWebhookSignature(body, sig, ""))
}

func TestSignIsKnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign([]byte("The quick brown fox jumps over the lazy dog"), "key"))
}

func TestPaiseConversion(t *testing.T) {
	assert.Equal(t, int64(50000), ToPaise(500))
	assert.Equal(t, int64(1999), ToPaise(19.99))
	assert.Equal(t, 19.99, FromPaise(1999))
}

func TestNewReceiptID(t *testing.T) {
	assert.Regexp(t, `^receipt_\d+_[A-Z0-9]{9}$`, NewReceiptID())
}

func TestDecodeGatewayBody(t *testing.T) {
	var order Order
	require.NoError(t, decode(map[string]interface{}{
		"id":       "order_abc",
		"amount":   float64(50000),
		"status":   "paid",
		"currency": "INR",
	}, &order))
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.True(t, order.Paid())
}

func TestWrapErrMapsMissingObjects(t *testing.T) {
	err := wrapErr("fetch refund", errors.New("The id provided does not exist"))
	assert.ErrorIs(t, err, ErrNotFound)

	err = wrapErr("create order", errors.New("Authentication failed"))
	assert.NotErrorIs(t, err, ErrNotFound)
}
