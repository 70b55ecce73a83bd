package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	Target string
	Key    string
	Event  string
	Data   interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingEmitter) add(e emitted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) SendToUser(id uuid.UUID, event string, data interface{}) {
	r.add(emitted{"user", id.String(), event, data})
}

func (r *recordingEmitter) SendToRole(role string, event string, data interface{}) {
	r.add(emitted{"role", role, event, data})
}

func (r *recordingEmitter) SendToRoom(room string, event string, data interface{}) {
	r.add(emitted{"room", room, event, data})
}

func (r *recordingEmitter) SendToRoomExcept(room string, _ uuid.UUID, event string, data interface{}) {
	r.add(emitted{"room", room, event, data})
}

func (r *recordingEmitter) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// targets lists the target keys that received event.
func (r *recordingEmitter) targets(event string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e.Target+":"+e.Key)
		}
	}
	return out
}

type fakeGateway struct {
	mu         sync.Mutex
	orders     map[string]*payments.Order
	refunds    []string
	refundErr  error
	linkErr    error
	nextOrder  int
	linkNotes  map[string]string
	paymentFor map[string]*payments.GatewayPayment
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*payments.Order{}, paymentFor: map[string]*payments.GatewayPayment{}}
}

func (g *fakeGateway) CreateOrder(req payments.OrderRequest) (*payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextOrder++
	o := &payments.Order{
		ID:       fmt.Sprintf("order_test%d", g.nextOrder),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    req.Notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(id string) (*payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, payments.ErrNotFound
	}
	return o, nil
}

func (g *fakeGateway) FetchPayment(id string) (*payments.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.paymentFor[id]
	if !ok {
		return nil, payments.ErrNotFound
	}
	return p, nil
}

func (g *fakeGateway) Refund(paymentID string, amount int64, _ map[string]string) (*payments.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	id := fmt.Sprintf("rfnd_test%d", len(g.refunds)+1)
	g.refunds = append(g.refunds, id)
	return &payments.GatewayRefund{ID: id, PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

func (g *fakeGateway) FetchRefund(id string) (*payments.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.refunds {
		if r == id {
			return &payments.GatewayRefund{ID: id, Status: "processed"}, nil
		}
	}
	return nil, payments.ErrNotFound
}

func (g *fakeGateway) CreatePaymentLink(req payments.PaymentLinkRequest) (*payments.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	g.linkNotes = req.Notes
	return &payments.PaymentLink{ID: "plink_test1", ShortURL: "https://rzp.io/i/test", Status: "created", Amount: req.Amount}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

var errGatewayDown = errors.New("gateway unavailable")

func seedUser(t *testing.T, db *gorm.DB, role models.Role, mutate ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Email:    fmt.Sprintf("%s-%s@campus.test", role, uuid.NewString()[:8]),
		Password: "x",
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
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPayment(t *testing.T, db *gorm.DB, studentID uuid.UUID, status models.PaymentStatus, mutate ...func(*models.Payment)) *models.Payment {
	t.Helper()
	p := &models.Payment{
		StudentID: studentID,
		Type:      models.PaymentTypeOther,
		Amount:    500,
		Currency:  DefaultCurrency,
		Status:    status,
		Gateway:   GatewayRazorpay,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
