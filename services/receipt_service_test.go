package services

import (
	"context"
	"strings"
	"testing"

	"github.com/anjiri1684/campus_manager/database/dbtest"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	html string
}

func (f *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.4 fake"), nil
}

func TestReceiptGenerateStoresURL(t *testing.T) {
	db := dbtest.Open(t)
	local, err := storage.NewLocal(t.TempDir(), "/uploads", "campus")
	require.NoError(t, err)
	renderer := &fakeRenderer{}
	svc := NewReceiptService(db, renderer, local, nil, "Campus", logger.NewNoOpLogger())

	student := seedUser(t, db, models.RoleStudent, func(u *models.User) { u.Profile.FirstName = "<Ada>" })
	p := seedPayment(t, db, student.ID, models.PaymentCompleted, func(p *models.Payment) {
		p.GatewayTransactionID = strPtr("pay_rcpt")
	})
	fee := models.Fee{StudentID: student.ID, AcademicYear: "2024-25", Semester: 1, TotalAmount: 500, Status: models.FeePending}
	require.NoError(t, db.Create(&fee).Error)
	require.NoError(t, db.Create(&models.FeePayment{FeeID: fee.ID, PaymentID: &p.ID, Amount: 500}).Error)

	url, err := svc.Generate(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/campus/receipts/"))
	assert.Contains(t, renderer.html, "pay_rcpt")
	assert.Contains(t, renderer.html, "&lt;Ada&gt;")
	assert.Contains(t, renderer.html, "INR 500.00")

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.NotNil(t, reloaded.ReceiptURL)
	assert.Equal(t, url, *reloaded.ReceiptURL)

	var record models.FeePayment
	require.NoError(t, db.First(&record, "payment_id = ?", p.ID).Error)
	assert.Equal(t, url, *record.ReceiptURL)
}

func TestReceiptRequiresCompletedPayment(t *testing.T) {
	db := dbtest.Open(t)
	local, err := storage.NewLocal(t.TempDir(), "/uploads", "")
	require.NoError(t, err)
	svc := NewReceiptService(db, &fakeRenderer{}, local, nil, "Campus", logger.NewNoOpLogger())
	student := seedUser(t, db, models.RoleStudent)
	p := seedPayment(t, db, student.ID, models.PaymentPending)

	_, err = svc.Generate(context.Background(), p.ID)
	assert.Error(t, err)
}
