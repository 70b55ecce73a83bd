package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/database/dbtest"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

type paymentFixture struct {
	db      *gorm.DB
	svc     *PaymentService
	gateway *fakeGateway
	emitter *recordingEmitter
	student *models.User
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	db := dbtest.Open(t)
	f := &paymentFixture{db: db, gateway: newFakeGateway(), emitter: &recordingEmitter{}}
	f.svc = NewPaymentService(PaymentServiceConfig{
		DB:            db,
		Gateway:       f.gateway,
		Emitter:       f.emitter,
		Logger:        logger.NewNoOpLogger(),
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
	})
	f.student = seedUser(t, db, models.RoleStudent)
	return f
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.PaymentStatus
		want     bool
	}{
		{models.PaymentPending, models.PaymentProcessing, true},
		{models.PaymentPending, models.PaymentCompleted, true},
		{models.PaymentPending, models.PaymentFailed, true},
		{models.PaymentPending, models.PaymentCancelled, true},
		{models.PaymentProcessing, models.PaymentCompleted, true},
		{models.PaymentProcessing, models.PaymentCancelled, true},
		{models.PaymentCompleted, models.PaymentRefunded, true},
		{models.PaymentPending, models.PaymentRefunded, false},
		{models.PaymentCompleted, models.PaymentFailed, false},
		{models.PaymentCompleted, models.PaymentPending, false},
		{models.PaymentFailed, models.PaymentCompleted, false},
		{models.PaymentCancelled, models.PaymentProcessing, false},
		{models.PaymentRefunded, models.PaymentCompleted, false},
		{models.PaymentProcessing, models.PaymentPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionCreditsFeeOnce(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	fee := models.Fee{StudentID: f.student.ID, AcademicYear: "2024-25", Semester: 1, TotalAmount: 1000, DueAmount: 1000, Status: models.FeePending}
	require.NoError(t, f.db.Create(&fee).Error)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentPending, func(p *models.Payment) {
		p.Type = models.PaymentTypeFee
		p.ReferenceID = fee.ID.String()
		p.Amount = 400
	})

	got, applied, err := f.svc.Transition(ctx, p.ID, models.PaymentCompleted, TransitionPatch{PaymentMethod: "upi"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.NotNil(t, got.PaymentDate)

	_, applied, err = f.svc.Transition(ctx, p.ID, models.PaymentCompleted, TransitionPatch{})
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, f.db.First(&fee, "id = ?", fee.ID).Error)
	assert.Equal(t, 400.0, fee.PaidAmount)
	assert.Equal(t, 600.0, fee.DueAmount)
	assert.Equal(t, models.FeePartial, fee.Status)

	var records int64
	f.db.Model(&models.FeePayment{}).Where("fee_id = ?", fee.ID).Count(&records)
	assert.Equal(t, int64(1), records)
	assert.Equal(t, 1, f.emitter.count("payment-updated"))
}

func TestTransitionPaysOffFee(t *testing.T) {
	f := newPaymentFixture(t)
	fee := models.Fee{StudentID: f.student.ID, AcademicYear: "2024-25", Semester: 2, TotalAmount: 500, PaidAmount: 100, DueAmount: 400, Status: models.FeePartial}
	require.NoError(t, f.db.Create(&fee).Error)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentProcessing, func(p *models.Payment) {
		p.Type = models.PaymentTypeFee
		p.ReferenceID = fee.ID.String()
		p.Amount = 400
	})

	_, applied, err := f.svc.Transition(context.Background(), p.ID, models.PaymentCompleted, TransitionPatch{})
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, f.db.First(&fee, "id = ?", fee.ID).Error)
	assert.Equal(t, 0.0, fee.DueAmount)
	assert.Equal(t, models.FeePaid, fee.Status)
}

func TestTransitionRejectsMovesOutOfTerminalStates(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	for _, status := range []models.PaymentStatus{models.PaymentFailed, models.PaymentCancelled, models.PaymentRefunded} {
		p := seedPayment(t, f.db, f.student.ID, status)
		_, _, err := f.svc.Transition(ctx, p.ID, models.PaymentCompleted, TransitionPatch{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, string(status))

		var reloaded models.Payment
		require.NoError(t, f.db.First(&reloaded, "id = ?", p.ID).Error)
		assert.Equal(t, status, reloaded.Status)
	}

	_, _, err := f.svc.Transition(ctx, uuid.New(), models.PaymentCompleted, TransitionPatch{})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	p := seedPayment(t, f.db, f.student.ID, models.PaymentPending)
	_, _, err = f.svc.Transition(ctx, p.ID, models.PaymentPending, TransitionPatch{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	f := newPaymentFixture(t)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentPending, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_1")
	})

	_, _, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: p.ID})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Equal(t, 0, f.gateway.refundCount())
}

func TestRefundWithoutGatewayPaymentID(t *testing.T) {
	f := newPaymentFixture(t)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted)

	_, _, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: p.ID})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	got, refund, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: p.ID, Offline: true, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	assert.Nil(t, refund.GatewayRefundID)
	assert.Equal(t, 500.0, refund.Amount)
}

func TestRefundClaimPreventsSecondExternalRefund(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_1")
	})

	partial := 200.0
	got, refund, err := f.svc.Refund(ctx, RefundInput{PaymentID: p.ID, Amount: &partial, Reason: "requested"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, 200.0, *got.RefundAmount)
	assert.Equal(t, models.RefundProcessed, *got.RefundStatus)
	require.NotNil(t, refund.GatewayRefundID)

	_, _, err = f.svc.Refund(ctx, RefundInput{PaymentID: p.ID})
	assert.ErrorIs(t, err, apperrors.ErrRefundInProgress)
	assert.Equal(t, 1, f.gateway.refundCount())

	var refunds int64
	f.db.Model(&models.Refund{}).Where("payment_id = ?", p.ID).Count(&refunds)
	assert.Equal(t, int64(1), refunds)
}

func TestRefundGatewayFailureReleasesClaim(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_2")
	})

	f.gateway.refundErr = errGatewayDown
	_, _, err := f.svc.Refund(ctx, RefundInput{PaymentID: p.ID})
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusOf(err))

	var reloaded models.Payment
	require.NoError(t, f.db.First(&reloaded, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentCompleted, reloaded.Status)
	assert.Equal(t, models.RefundFailed, *reloaded.RefundStatus)

	f.gateway.refundErr = nil
	got, _, err := f.svc.Refund(ctx, RefundInput{PaymentID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.Status)
}

func TestRefundRejectsExcessAmount(t *testing.T) {
	f := newPaymentFixture(t)
	p := seedPayment(t, f.db, f.student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayPaymentID = strPtr("pay_3")
	})
	tooMuch := 501.0
	_, _, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: p.ID, Amount: &tooMuch})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
}

func TestCreateOrderRecordsPendingPayment(t *testing.T) {
	f := newPaymentFixture(t)
	p, order, err := f.svc.CreateOrder(context.Background(), OrderInput{
		Amount: 1250.50, StudentID: f.student.ID, Type: models.PaymentTypeFee, ReferenceID: "fee-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(125050), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Regexp(t, `^receipt_\d+_[A-Z0-9]{9}$`, order.Receipt)
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Equal(t, order.ID, *p.GatewayOrderID)

	_, _, err = f.svc.CreateOrder(context.Background(), OrderInput{Amount: 10, StudentID: uuid.New(), Type: "fee", ReferenceID: "x"})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestVerifyCheckout(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, order, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 300, StudentID: f.student.ID, Type: models.PaymentTypeOther, ReferenceID: "r1"})
	require.NoError(t, err)
	f.gateway.paymentFor["pay_v1"] = &payments.GatewayPayment{ID: "pay_v1", Method: "card"}

	_, err = f.svc.VerifyCheckout(ctx, order.ID, "pay_v1", "deadbeef")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	sig := payments.Sign([]byte(order.ID+"|pay_v1"), testKeySecret)
	got, err := f.svc.VerifyCheckout(ctx, order.ID, "pay_v1", sig)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Equal(t, "card", got.PaymentMethod)
	assert.Equal(t, "pay_v1", *got.GatewayPaymentID)

	unknown := payments.Sign([]byte("order_missing|pay_v1"), testKeySecret)
	_, err = f.svc.VerifyCheckout(ctx, "order_missing", "pay_v1", unknown)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestReconcilePendingCompletesPaidOrders(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	paid, order, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 100, StudentID: f.student.ID, Type: "other", ReferenceID: "a"})
	require.NoError(t, err)
	unpaid, _, err := f.svc.CreateOrder(ctx, OrderInput{Amount: 100, StudentID: f.student.ID, Type: "other", ReferenceID: "b"})
	require.NoError(t, err)
	f.gateway.orders[order.ID].Status = "paid"

	completed, err := f.svc.ReconcilePending(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	var p models.Payment
	require.NoError(t, f.db.First(&p, "id = ?", paid.ID).Error)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	require.NoError(t, f.db.First(&p, "id = ?", unpaid.ID).Error)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestCreatePaymentLinkCarriesLocalID(t *testing.T) {
	f := newPaymentFixture(t)
	p, link, err := f.svc.CreatePaymentLink(context.Background(), LinkInput{
		OrderInput: OrderInput{Amount: 99, StudentID: f.student.ID, Type: "other", ReferenceID: "l1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "plink_test1", link.ID)
	assert.Equal(t, p.ID.String(), f.gateway.linkNotes["paymentId"])

	var meta map[string]string
	require.NoError(t, json.Unmarshal(p.Metadata, &meta))
	assert.Equal(t, "https://rzp.io/i/test", meta["shortUrl"])
}

func TestCreatePaymentLinkGatewayFailureMarksPaymentFailed(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.linkErr = errGatewayDown
	_, _, err := f.svc.CreatePaymentLink(context.Background(), LinkInput{
		OrderInput: OrderInput{Amount: 99, StudentID: f.student.ID, Type: "other", ReferenceID: "l2"},
	})
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusOf(err))

	var stored []models.Payment
	require.NoError(t, f.db.Where("student_id = ?", f.student.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, models.PaymentFailed, stored[0].Status)
}

func TestRecordOfflineAsCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	got, err := f.svc.RecordOffline(context.Background(), OfflinePaymentInput{
		StudentID: f.student.ID, Type: "other", Amount: 50, PaymentMethod: "cash", Status: models.PaymentCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Equal(t, "offline", got.Gateway)
}

func TestRecordOfflineRejectsUnreachableStatusWithoutPersisting(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.svc.RecordOffline(context.Background(), OfflinePaymentInput{
		StudentID: f.student.ID, Type: "other", Amount: 50, PaymentMethod: "cash", Status: models.PaymentRefunded,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	var count int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}
