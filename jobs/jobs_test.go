package jobs

import (
	"context"
	"testing"
	"time"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/database/dbtest"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRunner(t *testing.T) (*Runner, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	log := logger.NewNoOpLogger()
	templates, err := notifications.NewTemplates()
	require.NoError(t, err)
	mailer := notifications.NewMailer(db, notifications.NewLogSender(log), templates, "Campus Manager", log)
	ns := services.NewNotificationService(db, nil, nil, log)
	ps := services.NewPaymentService(services.PaymentServiceConfig{DB: db, Logger: log})
	return NewRunner(db, ns, ps, mailer, log), db
}

func seedStudent(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Email:    "student-" + uuid.NewString()[:8] + "@campus.test",
		Password: "x",
		Role:     models.RoleStudent,
		IsActive: true,
		Profile:  models.Profile{FirstName: "Amina", LastName: "Otieno"},
		Student:  &models.StudentProfile{StudentID: "STU" + uuid.NewString()[:6], AcademicInfo: models.AcademicInfo{Department: "CSE", Batch: "2024-A", CurrentSemester: 2}},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedFee(t *testing.T, db *gorm.DB, studentID uuid.UUID, year string, status string, due time.Time) *models.Fee {
	t.Helper()
	f := &models.Fee{
		StudentID:    studentID,
		AcademicYear: year,
		Semester:     2,
		TotalAmount:  1000,
		DueAmount:    1000,
		DueDate:      due,
		Status:       status,
	}
	require.NoError(t, db.Create(f).Error)
	return f
}

func TestMarkOverdueFees(t *testing.T) {
	r, db := newRunner(t)
	student := seedStudent(t, db)
	now := time.Now()

	late := seedFee(t, db, student.ID, "2024-2025", models.FeePending, now.Add(-48*time.Hour))
	upcoming := seedFee(t, db, student.ID, "2025-2026", models.FeePending, now.Add(48*time.Hour))
	settled := seedFee(t, db, student.ID, "2023-2024", models.FeePaid, now.Add(-48*time.Hour))

	n, err := r.MarkOverdueFees(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	statusOf := func(id uuid.UUID) string {
		var f models.Fee
		require.NoError(t, db.First(&f, "id = ?", id).Error)
		return f.Status
	}
	assert.Equal(t, models.FeeOverdue, statusOf(late.ID))
	assert.Equal(t, models.FeePending, statusOf(upcoming.ID))
	assert.Equal(t, models.FeePaid, statusOf(settled.ID))

	var reminders []models.EmailLog
	require.NoError(t, db.Where("template = ?", notifications.TemplateFeeReminder).Find(&reminders).Error)
	require.Len(t, reminders, 1)
	assert.Equal(t, student.Email, reminders[0].To)

	n, err = r.MarkOverdueFees(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a second run sends nothing new")
}

func TestDispatchScheduledOnce(t *testing.T) {
	r, db := newRunner(t)
	student := seedStudent(t, db)
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := &models.Notification{
		Title: "Exam hall change", Message: "Moved to block C", Type: models.NotificationInfo,
		Priority: models.PriorityMedium, Category: models.CategoryExam, SenderID: student.ID,
		RecipientMode: models.RecipientsSpecific, ScheduledAt: &past,
		Recipients: []models.NotificationRecipient{{UserID: student.ID}},
	}
	later := &models.Notification{
		Title: "Holiday", Message: "Campus closed", Type: models.NotificationInfo,
		Priority: models.PriorityLow, Category: models.CategoryGeneral, SenderID: student.ID,
		RecipientMode: models.RecipientsSpecific, ScheduledAt: &future,
		Recipients: []models.NotificationRecipient{{UserID: student.ID}},
	}
	require.NoError(t, db.Create(due).Error)
	require.NoError(t, db.Create(later).Error)

	n, err := r.DispatchScheduled(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = r.DispatchScheduled(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", later.ID).Error)
	assert.Nil(t, stored.DispatchedAt)
}

func TestPurgeExpiredKeepsRecentlyExpired(t *testing.T) {
	r, db := newRunner(t)
	student := seedStudent(t, db)
	longAgo := time.Now().Add(-10 * 24 * time.Hour)
	yesterday := time.Now().Add(-24 * time.Hour)

	for _, exp := range []*time.Time{&longAgo, &yesterday} {
		require.NoError(t, db.Create(&models.Notification{
			Title: "Notice", Message: "Body", Type: models.NotificationInfo, Priority: models.PriorityLow,
			Category: models.CategoryGeneral, SenderID: student.ID, RecipientMode: models.RecipientsSpecific,
			ExpiresAt: exp, Recipients: []models.NotificationRecipient{{UserID: student.ID}},
		}).Error)
	}

	n, err := r.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var left, recipients int64
	db.Model(&models.Notification{}).Count(&left)
	db.Model(&models.NotificationRecipient{}).Count(&recipients)
	assert.EqualValues(t, 1, left)
	assert.EqualValues(t, 1, recipients)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	r, _ := newRunner(t)

	c := cron.New()
	require.NoError(t, r.Schedule(c, config.JobsConfig{ScheduledDispatch: "* * * * *", OverdueFees: "0 2 * * *"}))
	assert.Len(t, c.Entries(), 2)

	err := r.Schedule(cron.New(), config.JobsConfig{PurgeNotifications: "not a spec"})
	assert.Error(t, err)
}
