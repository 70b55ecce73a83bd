package jobs

import (
	"context"

	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/services"
)

// MarkOverdueFees flags unpaid fees past their due date and sends each student a reminder.
// A fee is claimed row by row, so a reminder goes out once per fee even with several
// instances running the schedule.
func (r *Runner) MarkOverdueFees(ctx context.Context) (int64, error) {
	now := r.now()
	var due []models.Fee
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("status IN ? AND due_date < ?", []string{models.FeePending, models.FeePartial}, now).
		Limit(500).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	var marked int64
	for i := range due {
		fee := &due[i]
		res := r.db.WithContext(ctx).Model(&models.Fee{}).
			Where("id = ? AND status IN ?", fee.ID, []string{models.FeePending, models.FeePartial}).
			Update("status", models.FeeOverdue)
		if res.Error != nil {
			return marked, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		marked++

		if fee.Student == nil {
			continue
		}
		_, err := r.mailer.SendTemplate(ctx, fee.Student.Email, fee.Student.FullName(), notifications.TemplateFeeReminder, map[string]interface{}{
			"Currency":     services.DefaultCurrency,
			"Amount":       fee.DueAmount,
			"AcademicYear": fee.AcademicYear,
			"Semester":     fee.Semester,
			"DueDate":      fee.DueDate.Format("2006-01-02"),
		})
		if err != nil {
			r.log.WithError(err).Warn("Fee reminder not sent", map[string]interface{}{"feeId": fee.ID, "studentId": fee.StudentID})
		}
	}
	return marked, nil
}
