package notifications

import (
	"context"
	"time"

	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/anjiri1684/campus_manager/models"
	"gorm.io/gorm"
)

// Mailer renders templates, hands them to the configured Sender and records every
// attempt in email_logs.
type Mailer struct {
	db        *gorm.DB
	sender    Sender
	templates *Templates
	log       logger.Logger
	appName   string
}

func NewMailer(db *gorm.DB, sender Sender, templates *Templates, appName string, log logger.Logger) *Mailer {
	return &Mailer{db: db, sender: sender, templates: templates, appName: appName, log: log}
}

func (m *Mailer) Templates() *Templates { return m.templates }

// Send delivers an already rendered message. template labels the log row.
func (m *Mailer) Send(ctx context.Context, msg Message, template string) (string, error) {
	id, err := m.sender.Send(ctx, msg)

	entry := models.EmailLog{
		To:        msg.To,
		Subject:   msg.Subject,
		Template:  template,
		Provider:  m.sender.Provider(),
		Status:    models.EmailSent,
		MessageID: id,
	}
	if err != nil {
		entry.Status = models.EmailFailed
		entry.Error = err.Error()
		m.log.WithError(err).Warn("Email delivery failed", map[string]interface{}{"to": msg.To, "template": template})
	}
	metrics.EmailsSent.WithLabelValues(m.sender.Provider(), entry.Status).Inc()

	if logErr := m.db.WithContext(ctx).Create(&entry).Error; logErr != nil {
		m.log.WithError(logErr).Error("Failed to write email log", map[string]interface{}{"to": msg.To})
	}
	return id, err
}

func (m *Mailer) SendTemplate(ctx context.Context, to, toName, template string, data map[string]interface{}) (string, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	if _, ok := data["AppName"]; !ok {
		data["AppName"] = m.appName
	}
	if _, ok := data["Name"]; !ok {
		data["Name"] = toName
	}
	subject, html, err := m.templates.Render(template, data)
	if err != nil {
		return "", err
	}
	return m.Send(ctx, Message{To: to, ToName: toName, Subject: subject, HTML: html}, template)
}

// SendTemplateAsync is fire-and-forget; failures end up in the log table.
func (m *Mailer) SendTemplateAsync(to, toName, template string, data map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := m.SendTemplate(ctx, to, toName, template, data); err != nil {
			m.log.WithError(err).Warn("Async email failed", map[string]interface{}{"to": to, "template": template})
		}
	}()
}

type EmailStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByTemplate map[string]int64 `json:"byTemplate"`
}

func (m *Mailer) Stats(ctx context.Context) (*EmailStats, error) {
	stats := &EmailStats{ByStatus: map[string]int64{}, ByTemplate: map[string]int64{}}

	type row struct {
		Name  string
		Count int64
	}
	var byStatus, byTemplate []row
	if err := m.db.WithContext(ctx).Model(&models.EmailLog{}).Select("status AS name, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).Model(&models.EmailLog{}).
		Select("template AS name, COUNT(*) AS count").Group("template").Scan(&byTemplate).Error; err != nil {
		return nil, err
	}
	for _, r := range byStatus {
		stats.ByStatus[r.Name] = r.Count
		stats.Total += r.Count
	}
	for _, r := range byTemplate {
		stats.ByTemplate[r.Name] = r.Count
	}
	return stats, nil
}
