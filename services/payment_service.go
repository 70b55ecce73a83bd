package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	GatewayRazorpay = "razorpay"
	DefaultCurrency = "INR"
)

// predecessors lists, for every reachable status, the statuses it may be entered from.
// failed, cancelled and refunded are terminal.
var predecessors = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentProcessing: {models.PaymentPending},
	models.PaymentCompleted:  {models.PaymentPending, models.PaymentProcessing},
	models.PaymentFailed:     {models.PaymentPending, models.PaymentProcessing},
	models.PaymentCancelled:  {models.PaymentPending, models.PaymentProcessing},
	models.PaymentRefunded:   {models.PaymentCompleted},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to models.PaymentStatus) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// ReceiptIssuer renders and stores a receipt for a completed payment.
type ReceiptIssuer interface {
	Issue(paymentID uuid.UUID)
}

// TransitionPatch carries the columns written together with a status change.
// Nil fields are left untouched.
type TransitionPatch struct {
	GatewayPaymentID     *string
	GatewaySignature     *string
	GatewayTransactionID *string
	PaymentMethod        string
	RefundAmount         *float64
	RefundReason         *string
	RefundStatus         *string
	RefundDate           *time.Time
}

func (p TransitionPatch) columns(to models.PaymentStatus, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{"status": to}
	if to == models.PaymentCompleted {
		cols["payment_date"] = now
	}
	if p.GatewayPaymentID != nil {
		cols["gateway_payment_id"] = *p.GatewayPaymentID
	}
	if p.GatewaySignature != nil {
		cols["gateway_signature"] = *p.GatewaySignature
	}
	if p.GatewayTransactionID != nil {
		cols["gateway_transaction_id"] = *p.GatewayTransactionID
	}
	if p.PaymentMethod != "" {
		cols["payment_method"] = p.PaymentMethod
	}
	if p.RefundAmount != nil {
		cols["refund_amount"] = *p.RefundAmount
	}
	if p.RefundReason != nil {
		cols["refund_reason"] = *p.RefundReason
	}
	if p.RefundStatus != nil {
		cols["refund_status"] = *p.RefundStatus
	}
	if p.RefundDate != nil {
		cols["refund_date"] = *p.RefundDate
	}
	return cols
}

type PaymentService struct {
	db            *gorm.DB
	gateway       payments.Gateway
	emitter       Emitter
	receipts      ReceiptIssuer
	log           logger.Logger
	keySecret     string
	webhookSecret string
	now           func() time.Time
}

type PaymentServiceConfig struct {
	DB            *gorm.DB
	Gateway       payments.Gateway
	Emitter       Emitter
	Receipts      ReceiptIssuer
	Logger        logger.Logger
	KeySecret     string
	WebhookSecret string
}

func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	return &PaymentService{
		db:            cfg.DB,
		gateway:       cfg.Gateway,
		emitter:       emitterOrNop(cfg.Emitter),
		receipts:      cfg.Receipts,
		log:           cfg.Logger,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
	}
}

// Transition moves a payment to status to with a single guarded UPDATE. It returns the
// current row and whether this call applied the change. A repeated move into the status
// the row already holds is a no-op; every other rejected move is ErrInvalidTransition.
func (s *PaymentService) Transition(ctx context.Context, id uuid.UUID, to models.PaymentStatus, patch TransitionPatch) (*models.Payment, bool, error) {
	preds, ok := predecessors[to]
	if !ok {
		metrics.PaymentTransitions.WithLabelValues(string(to), "rejected").Inc()
		return nil, false, apperrors.ErrInvalidTransition
	}
	from := make([]string, len(preds))
	for i, p := range preds {
		from[i] = string(p)
	}

	now := s.now()
	var payment models.Payment
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(patch.columns(to, now))
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&payment, "id = ?", id).Error; err != nil {
			return apperrors.NotFoundOr(err, "Payment not found")
		}
		if res.RowsAffected == 0 {
			if payment.Status == to {
				return nil
			}
			return apperrors.ErrInvalidTransition
		}
		applied = true
		if to == models.PaymentCompleted && payment.Type == models.PaymentTypeFee {
			return s.creditFee(tx, &payment, now)
		}
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			result = "rejected"
		}
		metrics.PaymentTransitions.WithLabelValues(string(to), result).Inc()
		return nil, false, err
	}

	if !applied {
		metrics.PaymentTransitions.WithLabelValues(string(to), "noop").Inc()
		return &payment, false, nil
	}
	metrics.PaymentTransitions.WithLabelValues(string(to), "applied").Inc()
	s.log.Info("Payment status changed", map[string]interface{}{"paymentId": payment.ID, "status": to})

	if to == models.PaymentCompleted && s.receipts != nil {
		s.receipts.Issue(payment.ID)
	}
	s.emitter.SendToUser(payment.StudentID, "payment-updated", paymentEvent(&payment))
	return &payment, true, nil
}

func paymentEvent(p *models.Payment) map[string]interface{} {
	return map[string]interface{}{
		"paymentId": p.ID,
		"status":    p.Status,
		"amount":    p.Amount,
		"type":      p.Type,
	}
}

// creditFee adds the payment to its fee. The increment is an UPDATE so the fee row stays
// locked until the surrounding transaction commits.
func (s *PaymentService) creditFee(tx *gorm.DB, p *models.Payment, now time.Time) error {
	feeID, err := uuid.Parse(p.ReferenceID)
	if err != nil {
		s.log.Warn("Fee payment has no valid fee reference", map[string]interface{}{"paymentId": p.ID, "referenceId": p.ReferenceID})
		return nil
	}
	res := tx.Model(&models.Fee{}).Where("id = ?", feeID).
		Update("paid_amount", gorm.Expr("paid_amount + ?", p.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Warn("Fee referenced by payment not found", map[string]interface{}{"paymentId": p.ID, "feeId": feeID})
		return nil
	}

	var fee models.Fee
	if err := tx.First(&fee, "id = ?", feeID).Error; err != nil {
		return err
	}
	fee.Recompute()
	if err := tx.Model(&fee).Updates(map[string]interface{}{"due_amount": fee.DueAmount, "status": fee.Status}).Error; err != nil {
		return err
	}

	txID := ""
	if p.GatewayTransactionID != nil {
		txID = *p.GatewayTransactionID
	} else if p.GatewayPaymentID != nil {
		txID = *p.GatewayPaymentID
	}
	return tx.Create(&models.FeePayment{
		FeeID:         fee.ID,
		PaymentID:     &p.ID,
		Amount:        p.Amount,
		PaidAt:        now,
		Method:        p.PaymentMethod,
		TransactionID: txID,
	}).Error
}

type OrderInput struct {
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	StudentID   uuid.UUID `json:"studentId" validate:"required"`
	Type        string    `json:"type" validate:"required"`
	ReferenceID string    `json:"referenceId" validate:"required"`
}

func (in *OrderInput) normalize() {
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	in.Currency = strings.ToUpper(in.Currency)
}

func (s *PaymentService) requireStudent(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND role = ?", id, models.RoleStudent).First(&user).Error
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "Student not found")
	}
	return &user, nil
}

func gatewayErr(err error) error {
	if errors.Is(err, payments.ErrNotFound) {
		return apperrors.NotFound("Not found at payment gateway")
	}
	return apperrors.Wrap(err, apperrors.CodeGatewayFailure, http.StatusBadGateway, "Payment gateway request failed")
}

// CreateOrder opens a gateway order and records the matching pending payment.
func (s *PaymentService) CreateOrder(ctx context.Context, in OrderInput) (*models.Payment, *payments.Order, error) {
	in.normalize()
	if _, err := s.requireStudent(ctx, in.StudentID); err != nil {
		return nil, nil, err
	}

	order, err := s.gateway.CreateOrder(payments.OrderRequest{
		Amount:   payments.ToPaise(in.Amount),
		Currency: in.Currency,
		Receipt:  payments.NewReceiptID(),
		Notes: map[string]string{
			"studentId":   in.StudentID.String(),
			"type":        in.Type,
			"referenceId": in.ReferenceID,
			"description": in.Description,
		},
	})
	if err != nil {
		return nil, nil, gatewayErr(err)
	}

	meta, _ := json.Marshal(map[string]string{"receipt": order.Receipt})
	payment := models.Payment{
		StudentID:      in.StudentID,
		Type:           in.Type,
		ReferenceID:    in.ReferenceID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Status:         models.PaymentPending,
		PaymentMethod:  "online",
		Gateway:        GatewayRazorpay,
		GatewayOrderID: &order.ID,
		Description:    in.Description,
		Metadata:       datatypes.JSON(meta),
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, nil, err
	}
	return &payment, order, nil
}

type LinkInput struct {
	OrderInput
	Customer    payments.Customer `json:"customer"`
	CallbackURL string            `json:"callbackUrl"`
	ExpireBy    *time.Time        `json:"expireBy"`
}

// CreatePaymentLink records a pending payment and opens a hosted payment link for it.
// The local payment id travels in the link notes so the webhook can find it.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, in LinkInput) (*models.Payment, *payments.PaymentLink, error) {
	in.normalize()
	student, err := s.requireStudent(ctx, in.StudentID)
	if err != nil {
		return nil, nil, err
	}
	if in.Customer.Email == "" {
		in.Customer.Email = student.Email
	}
	if in.Customer.Name == "" {
		in.Customer.Name = student.FullName()
	}
	if in.Customer.Contact == "" {
		in.Customer.Contact = student.Profile.Phone
	}

	payment := models.Payment{
		StudentID:     in.StudentID,
		Type:          in.Type,
		ReferenceID:   in.ReferenceID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        models.PaymentPending,
		PaymentMethod: "online",
		Gateway:       GatewayRazorpay,
		Description:   in.Description,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, nil, err
	}

	link, err := s.gateway.CreatePaymentLink(payments.PaymentLinkRequest{
		Amount:      payments.ToPaise(in.Amount),
		Currency:    in.Currency,
		Description: in.Description,
		Customer:    in.Customer,
		ReferenceID: payment.ID.String(),
		CallbackURL: in.CallbackURL,
		ExpireBy:    in.ExpireBy,
		Notes:       map[string]string{"paymentId": payment.ID.String(), "type": in.Type, "referenceId": in.ReferenceID},
	})
	if err != nil {
		if _, _, failErr := s.Transition(ctx, payment.ID, models.PaymentFailed, TransitionPatch{}); failErr != nil {
			s.log.WithError(failErr).Error("Failed to mark payment link as failed", map[string]interface{}{"paymentId": payment.ID})
		}
		return nil, nil, gatewayErr(err)
	}

	meta, _ := json.Marshal(map[string]string{"paymentLinkId": link.ID, "shortUrl": link.ShortURL})
	payment.Metadata = datatypes.JSON(meta)
	if err := s.db.WithContext(ctx).Model(&payment).Update("metadata", payment.Metadata).Error; err != nil {
		return nil, nil, err
	}
	return &payment, link, nil
}

// VerifyCheckout checks the checkout signature and completes the payment for orderID.
func (s *PaymentService) VerifyCheckout(ctx context.Context, orderID, gatewayPaymentID, signature string) (*models.Payment, error) {
	if !payments.VerifyPaymentSignature(orderID, gatewayPaymentID, signature, s.keySecret) {
		return nil, apperrors.ErrInvalidSignature
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Payment not found")
	}
	if payment.Status != models.PaymentCompleted && !CanTransition(payment.Status, models.PaymentCompleted) {
		return nil, apperrors.ErrInvalidTransition
	}

	patch := TransitionPatch{
		GatewayPaymentID:     &gatewayPaymentID,
		GatewaySignature:     &signature,
		GatewayTransactionID: &gatewayPaymentID,
	}
	if gp, err := s.gateway.FetchPayment(gatewayPaymentID); err == nil {
		patch.PaymentMethod = gp.Method
	} else {
		s.log.WithError(err).Warn("Could not fetch gateway payment details", map[string]interface{}{"gatewayPaymentId": gatewayPaymentID})
	}

	updated, _, err := s.Transition(ctx, payment.ID, models.PaymentCompleted, patch)
	return updated, err
}

// FindPayment resolves a local payment by its id or by its gateway payment id.
func (s *PaymentService) FindPayment(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	q := s.db.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("gateway_payment_id = ?", ref)
	}
	if err := q.First(&payment).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Payment not found")
	}
	return &payment, nil
}

// SyncWithGateway completes a pending gateway payment whose order the gateway reports paid.
func (s *PaymentService) SyncWithGateway(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if p.Status != models.PaymentPending || p.GatewayOrderID == nil {
		return p, nil
	}
	order, err := s.gateway.FetchOrder(*p.GatewayOrderID)
	if err != nil {
		return nil, gatewayErr(err)
	}
	if !order.Paid() {
		return p, nil
	}
	updated, _, err := s.Transition(ctx, p.ID, models.PaymentCompleted, TransitionPatch{})
	return updated, err
}

// ReconcilePending checks pending gateway payments older than olderThan and completes the paid ones.
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	var pending []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND gateway_order_id IS NOT NULL AND created_at < ?", models.PaymentPending, s.now().Add(-olderThan)).
		Limit(100).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}
	completed := 0
	for i := range pending {
		p, err := s.SyncWithGateway(ctx, &pending[i])
		if err != nil {
			s.log.WithError(err).Warn("Reconcile failed for payment", map[string]interface{}{"paymentId": pending[i].ID})
			continue
		}
		if p.Status == models.PaymentCompleted {
			completed++
		}
	}
	return completed, nil
}

type RefundInput struct {
	PaymentID   uuid.UUID
	Amount      *float64
	Reason      string
	RequestedBy *uuid.UUID
	// Offline allows a refund without a gateway payment id.
	Offline bool
}

// Refund claims the payment's refund slot, calls the gateway for gateway payments and
// records the refund. A second refund while one is claimed or done fails with ErrRefundInProgress.
func (s *PaymentService) Refund(ctx context.Context, in RefundInput) (*models.Payment, *models.Refund, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", in.PaymentID).Error; err != nil {
		return nil, nil, apperrors.NotFoundOr(err, "Payment not found")
	}
	if payment.Status != models.PaymentCompleted && payment.Status != models.PaymentRefunded {
		return nil, nil, apperrors.BadRequest("Payment must be completed to create refund")
	}
	viaGateway := payment.GatewayPaymentID != nil && *payment.GatewayPaymentID != ""
	if !viaGateway && !in.Offline {
		return nil, nil, apperrors.BadRequest("Payment has no gateway payment id")
	}
	amount := payment.Amount
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount <= 0 || amount > payment.Amount {
		return nil, nil, apperrors.BadRequest("Refund amount must be positive and not exceed the payment amount")
	}

	claim := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND (refund_status IS NULL OR refund_status IN ?)",
			payment.ID, models.PaymentCompleted, []string{models.RefundNone, models.RefundFailed}).
		Update("refund_status", models.RefundProcessing)
	if claim.Error != nil {
		return nil, nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil, nil, apperrors.ErrRefundInProgress
	}

	var gatewayRefundID *string
	if viaGateway {
		gr, err := s.gateway.Refund(*payment.GatewayPaymentID, payments.ToPaise(amount), map[string]string{
			"reason":    in.Reason,
			"paymentId": payment.ID.String(),
		})
		if err != nil {
			if relErr := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", payment.ID).
				Update("refund_status", models.RefundFailed).Error; relErr != nil {
				s.log.WithError(relErr).Error("Failed to release refund claim", map[string]interface{}{"paymentId": payment.ID})
			}
			return nil, nil, gatewayErr(err)
		}
		gatewayRefundID = &gr.ID
		amount = payments.FromPaise(gr.Amount)
	}

	return s.recordRefund(ctx, payment.ID, amount, in.Reason, gatewayRefundID, in.RequestedBy)
}

func (s *PaymentService) recordRefund(ctx context.Context, paymentID uuid.UUID, amount float64, reason string, gatewayRefundID *string, requestedBy *uuid.UUID) (*models.Payment, *models.Refund, error) {
	now := s.now()
	processed := models.RefundProcessed
	patch := TransitionPatch{RefundAmount: &amount, RefundStatus: &processed, RefundDate: &now}
	if reason != "" {
		patch.RefundReason = &reason
	}
	payment, _, err := s.Transition(ctx, paymentID, models.PaymentRefunded, patch)
	if err != nil {
		return nil, nil, err
	}

	refund := models.Refund{
		PaymentID:       paymentID,
		Amount:          amount,
		Reason:          reason,
		Status:          models.RefundProcessed,
		GatewayRefundID: gatewayRefundID,
		RequestedByID:   requestedBy,
		ProcessedAt:     &now,
	}
	q := s.db.WithContext(ctx)
	if gatewayRefundID != nil {
		q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "gateway_refund_id"}}, DoNothing: true})
	}
	if err := q.Create(&refund).Error; err != nil {
		return nil, nil, err
	}
	return payment, &refund, nil
}

// UpdateRefundStatus updates the bookkeeping status of a refund record.
func (s *PaymentService) UpdateRefundStatus(ctx context.Context, refundID uuid.UUID, status string) (*models.Refund, error) {
	switch status {
	case models.RefundProcessing, models.RefundProcessed, models.RefundFailed:
	default:
		return nil, apperrors.BadRequest("Invalid refund status")
	}
	var refund models.Refund
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&refund, "id = ?", refundID).Error; err != nil {
			return apperrors.NotFoundOr(err, "Refund not found")
		}
		updates := map[string]interface{}{"status": status}
		if status == models.RefundProcessed {
			updates["processed_at"] = s.now()
		}
		if err := tx.Model(&refund).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.Payment{}).Where("id = ?", refund.PaymentID).Update("refund_status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// FetchGatewayRefund proxies a refund lookup to the gateway.
func (s *PaymentService) FetchGatewayRefund(refundID string) (*payments.GatewayRefund, error) {
	r, err := s.gateway.FetchRefund(refundID)
	if err != nil {
		return nil, gatewayErr(err)
	}
	return r, nil
}

func (s *PaymentService) KeyID() string { return s.gateway.KeyID() }

// Webhook results recorded on payment_gateway_events.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookUnmatched = "unmatched"
	WebhookRejected  = "rejected"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity webhookRefund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Amount  int64           `json:"amount"`
	Method  string          `json:"method"`
	Status  string          `json:"status"`
	Notes   json.RawMessage `json:"notes"`
}

type webhookRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// note reads a string note; the gateway sends an empty array when there are none.
func (p webhookPayment) note(key string) string {
	var notes map[string]interface{}
	if err := json.Unmarshal(p.Notes, &notes); err != nil {
		return ""
	}
	v, _ := notes[key].(string)
	return v
}

// HandleWebhook verifies and applies one gateway webhook delivery. eventID is the
// gateway's event id header and may be empty.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (string, error) {
	if !payments.VerifyWebhookSignature(body, signature, s.webhookSecret) {
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		return "", apperrors.New(apperrors.CodeInvalidSignature, http.StatusBadRequest, "Invalid webhook signature")
	}
	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return "", apperrors.BadRequest("Malformed webhook payload")
	}

	key := eventID
	if key == "" {
		sum := sha256.Sum256(body)
		key = hex.EncodeToString(sum[:])
	}
	record := models.PaymentGatewayEvent{
		ID:         key,
		Gateway:    GatewayRazorpay,
		Event:      evt.Event,
		Payload:    datatypes.JSON(body),
		ReceivedAt: s.now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		metrics.WebhookEvents.WithLabelValues(evt.Event, WebhookDuplicate).Inc()
		s.log.Info("Duplicate webhook event skipped", map[string]interface{}{"eventId": key, "event": evt.Event})
		return WebhookDuplicate, nil
	}

	result, err := s.applyWebhook(ctx, &evt)
	if err != nil {
		// Forget the event so the gateway's retry is processed again.
		s.db.WithContext(ctx).Delete(&models.PaymentGatewayEvent{}, "id = ?", key)
		metrics.WebhookEvents.WithLabelValues(evt.Event, "error").Inc()
		return "", err
	}

	now := s.now()
	s.db.WithContext(ctx).Model(&models.PaymentGatewayEvent{}).Where("id = ?", key).
		Updates(map[string]interface{}{"result": result, "processed_at": now})
	metrics.WebhookEvents.WithLabelValues(evt.Event, result).Inc()
	return result, nil
}

func (s *PaymentService) applyWebhook(ctx context.Context, evt *webhookEvent) (string, error) {
	fields := map[string]interface{}{"event": evt.Event}

	switch evt.Event {
	case "payment.captured", "payment.failed":
		if evt.Payload.Payment == nil {
			return WebhookIgnored, nil
		}
		entity := evt.Payload.Payment.Entity
		payment, err := s.paymentForEntity(ctx, entity)
		if err != nil {
			return "", err
		}
		if payment == nil {
			s.log.Warn("Webhook payment not matched", map[string]interface{}{"event": evt.Event, "gatewayPaymentId": entity.ID, "orderId": entity.OrderID})
			return WebhookUnmatched, nil
		}
		to := models.PaymentCompleted
		if evt.Event == "payment.failed" {
			to = models.PaymentFailed
		}
		patch := TransitionPatch{GatewayPaymentID: &entity.ID, GatewayTransactionID: &entity.ID, PaymentMethod: entity.Method}
		return s.webhookTransition(ctx, payment.ID, to, patch, fields)

	case "refund.created", "refund.processed":
		if evt.Payload.Refund == nil {
			return WebhookIgnored, nil
		}
		entity := evt.Payload.Refund.Entity
		var payment models.Payment
		err := s.db.WithContext(ctx).Where("gateway_payment_id = ?", entity.PaymentID).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("Webhook refund not matched", map[string]interface{}{"event": evt.Event, "gatewayPaymentId": entity.PaymentID})
			return WebhookUnmatched, nil
		}
		if err != nil {
			return "", err
		}
		if payment.Status == models.PaymentRefunded {
			return WebhookIgnored, nil
		}
		refundID := entity.ID
		if _, _, err := s.recordRefund(ctx, payment.ID, payments.FromPaise(entity.Amount), "", &refundID, nil); err != nil {
			if errors.Is(err, apperrors.ErrInvalidTransition) {
				s.log.Warn("Webhook transition rejected", fields)
				return WebhookRejected, nil
			}
			return "", err
		}
		return WebhookProcessed, nil

	default:
		s.log.Info("Unhandled webhook event", fields)
		return WebhookIgnored, nil
	}
}

func (s *PaymentService) webhookTransition(ctx context.Context, id uuid.UUID, to models.PaymentStatus, patch TransitionPatch, fields map[string]interface{}) (string, error) {
	_, applied, err := s.Transition(ctx, id, to, patch)
	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition):
		s.log.Warn("Webhook transition rejected", fields)
		return WebhookRejected, nil
	case err != nil:
		return "", err
	case !applied:
		return WebhookIgnored, nil
	}
	return WebhookProcessed, nil
}

// paymentForEntity finds the local payment by order id, then gateway payment id, then the
// local id carried in the notes of payment links. It returns nil when nothing matches.
func (s *PaymentService) paymentForEntity(ctx context.Context, e webhookPayment) (*models.Payment, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"gateway_order_id", e.OrderID},
		{"gateway_payment_id", e.ID},
		{"id", e.note("paymentId")},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		if l.column == "id" {
			if _, err := uuid.Parse(l.value); err != nil {
				continue
			}
		}
		var payment models.Payment
		err := s.db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", l.column), l.value).First(&payment).Error
		if err == nil {
			return &payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

type OfflinePaymentInput struct {
	StudentID     uuid.UUID            `json:"studentId" validate:"required"`
	Type          string               `json:"type" validate:"required"`
	ReferenceID   string               `json:"referenceId"`
	Amount        float64              `json:"amount" validate:"required,gt=0"`
	Currency      string               `json:"currency"`
	PaymentMethod string               `json:"paymentMethod" validate:"required,oneof=cash cheque bank_transfer upi card"`
	Description   string               `json:"description"`
	DueDate       *time.Time           `json:"dueDate"`
	TransactionID string               `json:"transactionId"`
	Status        models.PaymentStatus `json:"status"`
}

// RecordOffline stores a payment taken outside the gateway. It starts pending and is moved
// to the requested status through Transition.
func (s *PaymentService) RecordOffline(ctx context.Context, in OfflinePaymentInput) (*models.Payment, error) {
	if _, err := s.requireStudent(ctx, in.StudentID); err != nil {
		return nil, err
	}
	if in.Status != "" && in.Status != models.PaymentPending && !CanTransition(models.PaymentPending, in.Status) {
		return nil, apperrors.ErrInvalidTransition
	}
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	payment := models.Payment{
		StudentID:     in.StudentID,
		Type:          in.Type,
		ReferenceID:   in.ReferenceID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(in.Currency),
		Status:        models.PaymentPending,
		PaymentMethod: in.PaymentMethod,
		Gateway:       "offline",
		Description:   in.Description,
		DueDate:       in.DueDate,
	}
	if in.TransactionID != "" {
		payment.GatewayTransactionID = &in.TransactionID
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	if in.Status == "" || in.Status == models.PaymentPending {
		return &payment, nil
	}
	updated, _, err := s.Transition(ctx, payment.ID, in.Status, TransitionPatch{})
	if err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&models.Payment{}, "id = ? AND status = ?", payment.ID, models.PaymentPending).Error; delErr != nil {
			s.log.WithError(delErr).Error("Failed to discard offline payment", map[string]interface{}{"paymentId": payment.ID})
		}
		return nil, err
	}
	return updated, nil
}
