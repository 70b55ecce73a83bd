package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturedBody(t *testing.T, event, orderID, paymentID string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id": paymentID, "order_id": orderID, "amount": amount, "method": "netbanking", "status": "captured", "notes": []string{},
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func refundBody(t *testing.T, event, refundID, paymentID string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"refund": map[string]interface{}{
				"entity": map[string]interface{}{"id": refundID, "payment_id": paymentID, "amount": amount, "status": "processed"},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func sign(body []byte) string { return payments.Sign(body, testWebhookSecret) }

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	body := capturedBody(t, "payment.captured", "order_x", "pay_x", 100)

	_, err := f.svc.HandleWebhook(context.Background(), body, "bad", "")
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = f.svc.HandleWebhook(context.Background(), body, "", "")
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	var events int64
	f.db.Model(&models.PaymentGatewayEvent{}).Count(&events)
	assert.Zero(t, events)
}

func TestWebhookCapturedCompletesOnceAndDeduplicates(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, order, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 250, StudentID: f.student.ID, Type: models.PaymentTypeOther, ReferenceID: "w1"})
	require.NoError(t, err)

	body := capturedBody(t, "payment.captured", order.ID, "pay_w1", 25000)
	result, err := f.svc.HandleWebhook(ctx, body, sign(body), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Equal(t, "pay_w1", *got.GatewayPaymentID)
	assert.Equal(t, "netbanking", got.PaymentMethod)

	result, err = f.svc.HandleWebhook(ctx, body, sign(body), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, result)

	result, err = f.svc.HandleWebhook(ctx, body, sign(body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)

	result, err = f.svc.HandleWebhook(ctx, body, sign(body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, result)

	assert.Equal(t, 1, f.emitter.count("payment-updated"))

	var recorded models.PaymentGatewayEvent
	require.NoError(t, f.db.First(&recorded, "id = ?", "evt_1").Error)
	assert.Equal(t, WebhookProcessed, recorded.Result)
	assert.NotNil(t, recorded.ProcessedAt)
}

func TestWebhookFallsBackToPaymentID(t *testing.T) {
	f := newPaymentFixture(t)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentPending, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_fb")
	})

	body := capturedBody(t, "payment.captured", "", "pay_fb", 50000)
	result, err := f.svc.HandleWebhook(context.Background(), body, sign(body), "evt_fb")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentCompleted, got.Status)
}

func TestWebhookFailedAndUnknownEvents(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, order, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 10, StudentID: f.student.ID, Type: "other", ReferenceID: "f1"})
	require.NoError(t, err)

	body := capturedBody(t, "payment.failed", order.ID, "pay_f1", 1000)
	result, err := f.svc.HandleWebhook(ctx, body, sign(body), "evt_failed")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentFailed, got.Status)

	late := capturedBody(t, "payment.captured", order.ID, "pay_f1", 1000)
	result, err = f.svc.HandleWebhook(ctx, late, sign(late), "evt_late")
	require.NoError(t, err)
	assert.Equal(t, WebhookRejected, result)

	unknown := []byte(`{"event":"order.paid","payload":{}}`)
	result, err = f.svc.HandleWebhook(ctx, unknown, sign(unknown), "evt_unknown")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)

	unmatched := capturedBody(t, "payment.captured", "order_nobody", "pay_nobody", 1000)
	result, err = f.svc.HandleWebhook(ctx, unmatched, sign(unmatched), "evt_unmatched")
	require.NoError(t, err)
	assert.Equal(t, WebhookUnmatched, result)
}

func TestVerifyThenWebhookIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	fee := models.Fee{StudentID: f.student.ID, AcademicYear: "2024-25", Semester: 3, TotalAmount: 800, DueAmount: 800, Status: models.FeePending}
	require.NoError(t, f.db.Create(&fee).Error)
	_, order, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 800, StudentID: f.student.ID, Type: models.PaymentTypeFee, ReferenceID: fee.ID.String()})
	require.NoError(t, err)

	sig := payments.Sign([]byte(order.ID+"|pay_vw"), testKeySecret)
	_, err = f.svc.VerifyCheckout(ctx, order.ID, "pay_vw", sig)
	require.NoError(t, err)

	body := capturedBody(t, "payment.captured", order.ID, "pay_vw", 80000)
	result, err := f.svc.HandleWebhook(ctx, body, sign(body), "evt_vw")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)

	require.NoError(t, f.db.First(&fee, "id = ?", fee.ID).Error)
	assert.Equal(t, 800.0, fee.PaidAmount)
	assert.Equal(t, models.FeePaid, fee.Status)

	var records int64
	f.db.Model(&models.FeePayment{}).Where("fee_id = ?", fee.ID).Count(&records)
	assert.Equal(t, int64(1), records)
}

func TestWebhookRefundAfterLocalRefundIsNoop(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_r1")
	})

	_, refund, err := f.svc.Refund(ctx, RefundInput{PaymentID: p.ID})
	require.NoError(t, err)

	body := refundBody(t, "refund.processed", *refund.GatewayRefundID, "pay_r1", 50000)
	result, err := f.svc.HandleWebhook(ctx, body, sign(body), "evt_r1")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)
	assert.Equal(t, 1, f.gateway.refundCount())
}

func TestWebhookRefundRecordsAbsoluteAmount(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_r2")
	})

	body := refundBody(t, "refund.created", "rfnd_ext", "pay_r2", 12345)
	result, err := f.svc.HandleWebhook(ctx, body, sign(body), "evt_r2")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	assert.Equal(t, 123.45, *got.RefundAmount)

	var refund models.Refund
	require.NoError(t, f.db.First(&refund, "gateway_refund_id = ?", "rfnd_ext").Error)
	assert.Equal(t, 123.45, refund.Amount)
}
