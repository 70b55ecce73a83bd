package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/database"
	"github.com/anjiri1684/campus_manager/database/dbtest"
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/anjiri1684/campus_manager/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret        = "route-test-secret"
	testWebhookSecret = "route-webhook-secret"
	testPassword      = "secret123"
)

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	log := logger.NewNoOpLogger()

	cfg := &config.Config{
		App:      config.AppConfig{Name: "Campus Manager", FrontendURL: "http://localhost:3000"},
		JWT:      config.JWTConfig{Secret: testSecret, Expiry: time.Hour},
		Admin:    config.AdminConfig{Email: "admin@campus.test", Password: "admin-pass", FirstName: "System", LastName: "Admin"},
		Razorpay: config.RazorpayConfig{KeyID: "rzp_test", KeySecret: "key-secret", WebhookSecret: testWebhookSecret},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub(log, nil)
	require.NoError(t, hub.Start(ctx))

	templates, err := notifications.NewTemplates()
	require.NoError(t, err)
	mailer := notifications.NewMailer(db, notifications.NewLogSender(log), templates, cfg.App.Name, log)

	uploader, err := storage.NewLocal(t.TempDir(), "/uploads", "test")
	require.NoError(t, err)

	h := handlers.New(handlers.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   log,
		Hub:      hub,
		Mailer:   mailer,
		Uploader: uploader,
		Payments: services.NewPaymentService(services.PaymentServiceConfig{
			DB:            db,
			Gateway:       payments.NewRazorpayGateway(cfg.Razorpay),
			Emitter:       hub,
			Logger:        log,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
		}),
		Notifications: services.NewNotificationService(db, hub, nil, log),
		Chat:          services.NewChatService(db, hub, log),
		Events:        services.NewEventService(db, hub, log),
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	Setup(app, h)
	return &testServer{app: app, db: db, cfg: cfg}
}

func (s *testServer) seedUser(t *testing.T, role models.Role, mutate ...func(*models.User)) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Email:    fmt.Sprintf("%s-%s@campus.test", role, uuid.NewString()[:8]),
		Password: string(hash),
		Role:     role,
		IsActive: true,
		Profile:  models.Profile{FirstName: "Test", LastName: string(role)},
	}
	switch role {
	case models.RoleStudent:
		u.Student = &models.StudentProfile{StudentID: "STU" + uuid.NewString()[:6], AcademicInfo: models.AcademicInfo{Department: "CSE", Batch: "2024-A", CurrentSemester: 1}}
	case models.RoleTeacher:
		u.Teacher = &models.TeacherProfile{EmployeeID: "TCH" + uuid.NewString()[:6], Department: "CSE"}
	case models.RoleAdmin:
		u.Admin = &models.AdminProfile{AdminID: "ADM" + uuid.NewString()[:6]}
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, s.db.Create(u).Error)
	return u
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(testSecret, u, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success    bool            `json:"success"`
	Verified   *bool           `json:"verified"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
		Pages int   `json:"pages"`
	} `json:"pagination"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	active := s.seedUser(t, models.RoleStudent)
	inactive := s.seedUser(t, models.RoleStudent, func(u *models.User) { u.IsActive = false })

	status, _ := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": active.Email, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "nobody@campus.test", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": inactive.Email, "password": testPassword})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": active.Email, "password": testPassword})
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Token string                 `json:"token"`
		User  map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.NotContains(t, data.User, "password")

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", data.Token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/api/notifications/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutesRejectOtherRoles(t *testing.T) {
	s := newTestServer(t)
	student := s.seedUser(t, models.RoleStudent)
	teacher := s.seedUser(t, models.RoleTeacher)

	for _, u := range []*models.User{student, teacher} {
		status, _ := s.do(t, http.MethodGet, "/api/admin/students", s.token(t, u), nil)
		assert.Equal(t, http.StatusForbidden, status, string(u.Role))
	}

	status, _ := s.do(t, http.MethodGet, "/api/teacher/subjects", s.token(t, student), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestStudentListPagination(t *testing.T) {
	s := newTestServer(t)
	admin := s.seedUser(t, models.RoleAdmin)
	for i := 0; i < 25; i++ {
		s.seedUser(t, models.RoleStudent)
	}

	status, env := s.do(t, http.MethodGet, "/api/admin/students?page=2&limit=10", s.token(t, admin), nil)
	require.Equal(t, http.StatusOK, status)

	var students []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &students))
	assert.Len(t, students, 10)
	assert.EqualValues(t, 25, env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, 3, env.Pagination.Pages)
}

func TestSeededAdminReachesDashboard(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, database.SeedAdmin(s.db, s.cfg.Admin, logger.NewNoOpLogger()))
	s.seedUser(t, models.RoleStudent)
	s.seedUser(t, models.RoleTeacher)

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": s.cfg.Admin.Email, "password": s.cfg.Admin.Password})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	status, env = s.do(t, http.MethodGet, "/api/admin/dashboard/stats", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	for _, key := range []string{"totalStudents", "totalTeachers", "totalSubjects"} {
		_, isNumber := stats[key].(float64)
		assert.True(t, isNumber, key)
	}
	assert.EqualValues(t, 1, stats["totalStudents"])
	assert.EqualValues(t, 1, stats["totalTeachers"])
}

func TestRazorpayWebhookOverHTTP(t *testing.T) {
	s := newTestServer(t)
	student := s.seedUser(t, models.RoleStudent)
	orderID := "order_http1"
	payment := &models.Payment{
		StudentID:      student.ID,
		Type:           models.PaymentTypeOther,
		Amount:         250,
		Currency:       services.DefaultCurrency,
		Status:         models.PaymentPending,
		Gateway:        services.GatewayRazorpay,
		GatewayOrderID: &orderID,
	}
	require.NoError(t, s.db.Create(payment).Error)

	body, err := json.Marshal(fiber.Map{
		"event": "payment.captured",
		"payload": fiber.Map{"payment": fiber.Map{"entity": fiber.Map{
			"id": "pay_http1", "order_id": orderID, "amount": 25000, "method": "upi", "status": "captured",
		}}},
	})
	require.NoError(t, err)
	path := "/api/payment-gateway/razorpay/webhook"

	status, _ := s.do(t, http.MethodPost, path, "", body)
	assert.Equal(t, http.StatusBadRequest, status, "missing signature")

	status, _ = s.do(t, http.MethodPost, path, "", body, "X-Razorpay-Signature", "deadbeef")
	assert.Equal(t, http.StatusBadRequest, status, "bad signature")

	sig := payments.Sign(body, testWebhookSecret)
	status, _ = s.do(t, http.MethodPost, path, "", body, "X-Razorpay-Signature", sig, "X-Razorpay-Event-Id", "evt_1")
	require.Equal(t, http.StatusOK, status)

	var stored models.Payment
	require.NoError(t, s.db.First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, models.PaymentCompleted, stored.Status)

	status, _ = s.do(t, http.MethodPost, path, "", body, "X-Razorpay-Signature", sig, "X-Razorpay-Event-Id", "evt_1")
	assert.Equal(t, http.StatusOK, status, "duplicate delivery is acknowledged")
}

func TestVerifyPaymentOnlyFlagsSignatureMismatch(t *testing.T) {
	s := newTestServer(t)
	student := s.seedUser(t, models.RoleStudent)
	tok := s.token(t, student)
	path := "/api/payment-gateway/razorpay/verify"
	sign := func(orderID, paymentID string) string {
		return payments.Sign([]byte(orderID+"|"+paymentID), s.cfg.Razorpay.KeySecret)
	}

	status, env := s.do(t, http.MethodPost, path, tok, fiber.Map{"orderId": "order_v1", "paymentId": "pay_v1", "signature": "deadbeef"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Verified)
	assert.False(t, *env.Verified)
	assert.Equal(t, "Invalid payment signature", env.Message)

	status, env = s.do(t, http.MethodPost, path, tok, fiber.Map{"orderId": "order_missing", "paymentId": "pay_v1", "signature": sign("order_missing", "pay_v1")})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Nil(t, env.Verified)

	orderID := "order_refunded"
	require.NoError(t, s.db.Create(&models.Payment{
		StudentID: student.ID, Type: models.PaymentTypeOther, Amount: 100, Currency: services.DefaultCurrency,
		Status: models.PaymentRefunded, Gateway: services.GatewayRazorpay, GatewayOrderID: &orderID,
	}).Error)
	status, env = s.do(t, http.MethodPost, path, tok, fiber.Map{"orderId": orderID, "paymentId": "pay_v2", "signature": sign(orderID, "pay_v2")})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Nil(t, env.Verified)
	assert.NotEqual(t, "Invalid payment signature", env.Message)
}

func TestEmailRoutesMixPublicAndAdmin(t *testing.T) {
	s := newTestServer(t)
	student := s.seedUser(t, models.RoleStudent)

	status, _ := s.do(t, http.MethodPost, "/api/email/password-reset", "", fiber.Map{"email": "ghost@campus.test", "resetToken": "abc"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/api/email/password-reset", "", fiber.Map{"email": student.Email, "resetToken": "abc"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/email/stats", s.token(t, student), nil)
	assert.Equal(t, http.StatusForbidden, status)

	var logs int64
	s.db.Model(&models.EmailLog{}).Where("template = ?", notifications.TemplatePasswordReset).Count(&logs)
	assert.EqualValues(t, 1, logs)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
