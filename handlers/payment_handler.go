package handlers

import (
	"encoding/json"
	"time"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentMethodRequest struct {
	StudentID *uuid.UUID      `json:"studentId"`
	Type      string          `json:"type" validate:"required,oneof=card upi netbanking wallet bank_account"`
	Provider  string          `json:"provider"`
	Label     string          `json:"label"`
	Last4     string          `json:"last4" validate:"omitempty,len=4,numeric"`
	Details   json.RawMessage `json:"details"`
	IsDefault bool            `json:"isDefault"`
}

type GatewayConfigRequest struct {
	Name             string          `json:"name" validate:"required"`
	Provider         string          `json:"provider" validate:"required,oneof=razorpay stripe paypal"`
	KeyID            string          `json:"keyId"`
	KeySecret        string          `json:"keySecret"`
	WebhookSecret    string          `json:"webhookSecret"`
	IsActive         *bool           `json:"isActive"`
	IsTestMode       *bool           `json:"isTestMode"`
	SupportedMethods []string        `json:"supportedMethods"`
	Settings         json.RawMessage `json:"settings"`
}

type amountBucket struct {
	Key    string  `gorm:"column:bucket" json:"key"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

func (h *Handler) ListPayments(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	studentID, err := queryUUID(c, "studentId")
	if err != nil {
		return err
	}
	user := currentUser(c)
	if user.Role == models.RoleStudent {
		studentID = &user.ID
	}

	q := h.db.WithContext(c.UserContext()).Model(&models.Payment{})
	if studentID != nil {
		q = q.Where("student_id = ?", *studentID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if typ := c.Query("type"); typ != "" {
		q = q.Where("type = ?", typ)
	}
	q, err = dateRange(q, c, "created_at")
	if err != nil {
		return err
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var list []models.Payment
	if err := q.Preload("Student.Student").Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&list).Error; err != nil {
		return err
	}
	return paginated(c, list, p, total)
}

// dateRange applies the startDate/endDate query parameters, both inclusive days.
func dateRange(q *gorm.DB, c *fiber.Ctx, column string) (*gorm.DB, error) {
	if raw := c.Query("startDate"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, apperrors.BadRequest("startDate must be formatted as YYYY-MM-DD")
		}
		q = q.Where(column+" >= ?", from)
	}
	if raw := c.Query("endDate"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, apperrors.BadRequest("endDate must be formatted as YYYY-MM-DD")
		}
		q = q.Where(column+" < ?", to.AddDate(0, 0, 1))
	}
	return q, nil
}

// visiblePayment loads a payment, hiding other students' payments from a student.
func (h *Handler) visiblePayment(c *fiber.Ctx, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	q := h.db.WithContext(c.UserContext()).Preload("Student.Student").Where("id = ?", id)
	if user := currentUser(c); user.Role == models.RoleStudent {
		q = q.Where("student_id = ?", user.ID)
	}
	if err := q.First(&payment).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Payment not found")
	}
	return &payment, nil
}

func (h *Handler) GetPayment(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	payment, err := h.visiblePayment(c, id)
	if err != nil {
		return err
	}
	return ok(c, payment)
}

// PaymentReceipt returns the stored receipt link, rendering it first when the background
// generation has not produced one yet.
func (h *Handler) PaymentReceipt(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	payment, err := h.visiblePayment(c, id)
	if err != nil {
		return err
	}
	if payment.ReceiptURL != nil && *payment.ReceiptURL != "" {
		return ok(c, fiber.Map{"receiptUrl": *payment.ReceiptURL})
	}
	if payment.Status != models.PaymentCompleted {
		return apperrors.BadRequest("Receipts are only available for completed payments")
	}
	url, err := h.receipts.Generate(c.UserContext(), payment.ID)
	if err != nil {
		return apperrors.Internal(err, "Failed to generate receipt")
	}
	return ok(c, fiber.Map{"receiptUrl": url})
}

func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	var in services.OfflinePaymentInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user := currentUser(c)
	if user.Role != models.RoleAdmin {
		in.Status = models.PaymentPending
	}
	if user.Role == models.RoleStudent && in.StudentID != user.ID {
		return apperrors.Forbidden("Students can only record their own payments")
	}
	if in.Status != "" && !in.Status.Valid() {
		return apperrors.BadRequest("Invalid payment status")
	}
	payment, err := h.payments.RecordOffline(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, "Payment recorded successfully", payment)
}

func (h *Handler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Status        models.PaymentStatus `json:"status" validate:"required"`
		TransactionID string               `json:"transactionId"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if !req.Status.Valid() {
		return apperrors.BadRequest("Invalid payment status")
	}
	var patch services.TransitionPatch
	if req.TransactionID != "" {
		patch.GatewayTransactionID = &req.TransactionID
	}
	payment, applied, err := h.payments.Transition(c.UserContext(), id, req.Status, patch)
	if err != nil {
		return err
	}
	if !applied {
		return okMessage(c, "Payment already has this status", payment)
	}
	return okMessage(c, "Payment status updated successfully", payment)
}

// Payment methods

func (h *Handler) StudentPaymentMethods(c *fiber.Ctx) error {
	studentID, err := paramUUID(c, "studentId")
	if err != nil {
		return err
	}
	if user := currentUser(c); user.Role == models.RoleStudent && user.ID != studentID {
		return apperrors.Forbidden("Access denied")
	}
	var methods []models.PaymentMethod
	err = h.db.WithContext(c.UserContext()).
		Where("student_id = ? AND is_active = ?", studentID, true).
		Order("is_default DESC, created_at DESC").Find(&methods).Error
	if err != nil {
		return err
	}
	return ok(c, methods)
}

func (h *Handler) CreatePaymentMethod(c *fiber.Ctx) error {
	var req PaymentMethodRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	studentID := user.ID
	if user.Role != models.RoleStudent {
		if req.StudentID == nil {
			return apperrors.BadRequest("studentId is required")
		}
		studentID = *req.StudentID
	}

	method := models.PaymentMethod{
		StudentID: studentID,
		Type:      req.Type,
		Provider:  req.Provider,
		Label:     req.Label,
		Last4:     req.Last4,
		Details:   datatypes.JSON(req.Details),
		IsDefault: req.IsDefault,
		IsActive:  true,
	}
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if method.IsDefault {
			if err := clearDefault(tx, studentID); err != nil {
				return err
			}
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		return err
	}
	return created(c, "Payment method added successfully", method)
}

func clearDefault(tx *gorm.DB, studentID uuid.UUID) error {
	return tx.Model(&models.PaymentMethod{}).
		Where("student_id = ? AND is_default = ?", studentID, true).
		Update("is_default", false).Error
}

func (h *Handler) ownPaymentMethod(c *fiber.Ctx, tx *gorm.DB) (*models.PaymentMethod, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	var method models.PaymentMethod
	q := tx.Where("id = ?", id)
	if user := currentUser(c); user.Role == models.RoleStudent {
		q = q.Where("student_id = ?", user.ID)
	}
	if err := q.First(&method).Error; err != nil {
		return nil, apperrors.NotFoundOr(err, "Payment method not found")
	}
	return &method, nil
}

func (h *Handler) UpdatePaymentMethod(c *fiber.Ctx) error {
	var req struct {
		Label     *string         `json:"label"`
		Provider  *string         `json:"provider"`
		Details   json.RawMessage `json:"details"`
		IsDefault *bool           `json:"isDefault"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	var method *models.PaymentMethod
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		if method, err = h.ownPaymentMethod(c, tx); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if req.Label != nil {
			updates["label"] = *req.Label
		}
		if req.Provider != nil {
			updates["provider"] = *req.Provider
		}
		if len(req.Details) > 0 {
			updates["details"] = datatypes.JSON(req.Details)
		}
		if req.IsDefault != nil {
			if *req.IsDefault {
				if err := clearDefault(tx, method.StudentID); err != nil {
					return err
				}
			}
			updates["is_default"] = *req.IsDefault
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(method).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(method, "id = ?", method.ID).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Payment method updated successfully", method)
}

func (h *Handler) DeletePaymentMethod(c *fiber.Ctx) error {
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		method, err := h.ownPaymentMethod(c, tx)
		if err != nil {
			return err
		}
		return tx.Model(method).Updates(map[string]interface{}{"is_active": false, "is_default": false}).Error
	})
	if err != nil {
		return err
	}
	return okMessage(c, "Payment method removed successfully", nil)
}

// Refunds

func (h *Handler) CreateRefund(c *fiber.Ctx) error {
	var req struct {
		PaymentID uuid.UUID `json:"paymentId" validate:"required"`
		Amount    *float64  `json:"amount" validate:"omitempty,gt=0"`
		Reason    string    `json:"reason"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	requester := currentUser(c).ID
	payment, refund, err := h.payments.Refund(c.UserContext(), services.RefundInput{
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		RequestedBy: &requester,
		Offline:     true,
	})
	if err != nil {
		return err
	}
	return created(c, "Refund processed successfully", fiber.Map{"payment": payment, "refund": refund})
}

func (h *Handler) UpdateRefundStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	refund, err := h.payments.UpdateRefundStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	return okMessage(c, "Refund status updated successfully", refund)
}

func (h *Handler) ListRefunds(c *fiber.Ctx) error {
	p := utils.ParsePagination(c, utils.DefaultLimit)
	paymentID, err := queryUUID(c, "paymentId")
	if err != nil {
		return err
	}
	q := h.db.WithContext(c.UserContext()).Model(&models.Refund{})
	if paymentID != nil {
		q = q.Where("payment_id = ?", *paymentID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	var refunds []models.Refund
	if err := q.Preload("Payment").Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&refunds).Error; err != nil {
		return err
	}
	return paginated(c, refunds, p, total)
}

// Gateway configuration

func (h *Handler) ListGatewayConfigs(c *fiber.Ctx) error {
	var configs []models.PaymentGatewayConfig
	if err := h.db.WithContext(c.UserContext()).Order("name").Find(&configs).Error; err != nil {
		return err
	}
	return ok(c, configs)
}

func (h *Handler) CreateGatewayConfig(c *fiber.Ctx) error {
	var req GatewayConfigRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cfg := models.PaymentGatewayConfig{
		Name:             req.Name,
		Provider:         req.Provider,
		KeyID:            req.KeyID,
		KeySecret:        req.KeySecret,
		WebhookSecret:    req.WebhookSecret,
		IsActive:         req.IsActive == nil || *req.IsActive,
		IsTestMode:       req.IsTestMode != nil && *req.IsTestMode,
		SupportedMethods: req.SupportedMethods,
		Settings:         datatypes.JSON(req.Settings),
	}
	if err := h.db.WithContext(c.UserContext()).Create(&cfg).Error; err != nil {
		return err
	}
	return created(c, "Payment gateway configured successfully", cfg)
}

func (h *Handler) UpdateGatewayConfig(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req GatewayConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	ctx := c.UserContext()
	var cfg models.PaymentGatewayConfig
	if err := h.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return apperrors.NotFoundOr(err, "Payment gateway not found")
	}

	updates := map[string]interface{}{}
	if req.KeyID != "" {
		updates["key_id"] = req.KeyID
	}
	if req.KeySecret != "" {
		updates["key_secret"] = req.KeySecret
	}
	if req.WebhookSecret != "" {
		updates["webhook_secret"] = req.WebhookSecret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsTestMode != nil {
		updates["is_test_mode"] = *req.IsTestMode
	}
	if req.SupportedMethods != nil {
		updates["supported_methods"] = datatypes.JSONSlice[string](req.SupportedMethods)
	}
	if len(req.Settings) > 0 {
		updates["settings"] = datatypes.JSON(req.Settings)
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(&cfg).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := h.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return err
	}
	return okMessage(c, "Payment gateway updated successfully", cfg)
}

func (h *Handler) PaymentStats(c *fiber.Ctx) error {
	base := h.db.WithContext(c.UserContext()).Model(&models.Payment{}).Where("status = ?", models.PaymentCompleted)
	base, err := dateRange(base, c, "payment_date")
	if err != nil {
		return err
	}

	var total struct{ Amount float64 }
	if err := base.Session(&gorm.Session{}).Select("COALESCE(SUM(amount), 0) AS amount").Scan(&total).Error; err != nil {
		return err
	}
	var byType, byMethod []amountBucket
	if err := base.Session(&gorm.Session{}).
		Select("type AS bucket, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("type").Scan(&byType).Error; err != nil {
		return err
	}
	if err := base.Session(&gorm.Session{}).
		Select("payment_method AS bucket, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("payment_method").Scan(&byMethod).Error; err != nil {
		return err
	}
	return ok(c, fiber.Map{
		"totalAmount":      utils.Round2(total.Amount),
		"paymentsByType":   byType,
		"paymentsByMethod": byMethod,
	})
}
