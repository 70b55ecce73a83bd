package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"
)

const (
	TemplateWelcome                = "welcome"
	TemplateFeeReminder            = "fee_reminder"
	TemplateExamNotification       = "exam_notification"
	TemplateEventInvitation        = "event_invitation"
	TemplateAttendanceNotification = "attendance_notification"
	TemplatePasswordReset          = "password_reset"
	TemplatePaymentReceipt         = "payment_receipt"
	TemplateTest                   = "test"
)

type templateDef struct {
	subject string
	body    string
}

var templateDefs = map[string]templateDef{
	TemplateWelcome: {
		subject: "Welcome to {{.AppName}}",
		body: `<h2>Welcome, {{.Name}}!</h2>
<p>Your {{.Role}} account has been created with the email <strong>{{.Email}}</strong>.</p>
{{if .Password}}<p>Your temporary password is <strong>{{.Password}}</strong>. Please change it after your first login.</p>{{end}}
<p><a href="{{.LoginURL}}">Sign in</a></p>`,
	},
	TemplateFeeReminder: {
		subject: "Fee payment reminder: {{.AcademicYear}} semester {{.Semester}}",
		body: `<h2>Dear {{.Name}},</h2>
<p>This is a reminder that <strong>{{.Currency}} {{.Amount}}</strong> is due for {{.AcademicYear}}, semester {{.Semester}}.</p>
<p>Due date: <strong>{{.DueDate}}</strong></p>
<p>Please clear the outstanding amount to avoid late charges.</p>`,
	},
	TemplateExamNotification: {
		subject: "Exam scheduled: {{.ExamName}}",
		body: `<h2>Dear {{.Name}},</h2>
<p>The exam <strong>{{.ExamName}}</strong> for {{.Subject}} is scheduled on <strong>{{.Date}}</strong>{{if .Venue}} at {{.Venue}}{{end}}.</p>
{{if .Instructions}}<p>{{.Instructions}}</p>{{end}}`,
	},
	TemplateEventInvitation: {
		subject: "You're invited: {{.Title}}",
		body: `<h2>Hello {{.Name}},</h2>
<p>You are invited to <strong>{{.Title}}</strong> on {{.Date}}{{if .Venue}} at {{.Venue}}{{end}}.</p>
{{if .Description}}<p>{{.Description}}</p>{{end}}`,
	},
	TemplateAttendanceNotification: {
		subject: "Attendance update for {{.Subject}}",
		body: `<h2>Dear {{.Name}},</h2>
<p>Your attendance in <strong>{{.Subject}}</strong> is currently <strong>{{.Percentage}}%</strong>.</p>
{{if .Message}}<p>{{.Message}}</p>{{end}}`,
	},
	TemplatePasswordReset: {
		subject: "Your password reset link",
		body: `<h2>Password reset</h2>
<p>Hello {{.Name}}, click the link below to reset your password. The link is valid for 15 minutes.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>`,
	},
	TemplatePaymentReceipt: {
		subject: "Payment received: {{.Currency}} {{.Amount}}",
		body: `<h2>Dear {{.Name}},</h2>
<p>We have received your payment of <strong>{{.Currency}} {{.Amount}}</strong> on {{.Date}}.</p>
<p>Payment reference: {{.PaymentID}}</p>
{{if .ReceiptURL}}<p><a href="{{.ReceiptURL}}">Download receipt</a></p>{{end}}`,
	},
	TemplateTest: {
		subject: "{{.AppName}} email test",
		body:    `<p>This is a test email sent at {{.Time}}.</p>`,
	},
}

const layout = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
{{.Body}}
<hr><p style="font-size:12px;color:#888">{{.AppName}}</p>
</body></html>`

// Templates renders named email templates.
type Templates struct {
	subjects map[string]*texttemplate.Template
	bodies   map[string]*htmltemplate.Template
	layout   *htmltemplate.Template
}

func NewTemplates() (*Templates, error) {
	t := &Templates{
		subjects: make(map[string]*texttemplate.Template, len(templateDefs)),
		bodies:   make(map[string]*htmltemplate.Template, len(templateDefs)),
	}
	for name, def := range templateDefs {
		subj, err := texttemplate.New(name).Parse(def.subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject %s: %w", name, err)
		}
		body, err := htmltemplate.New(name).Parse(def.body)
		if err != nil {
			return nil, fmt.Errorf("parse body %s: %w", name, err)
		}
		t.subjects[name] = subj
		t.bodies[name] = body
	}
	l, err := htmltemplate.New("layout").Parse(layout)
	if err != nil {
		return nil, err
	}
	t.layout = l
	return t, nil
}

func (t *Templates) Has(name string) bool {
	_, ok := t.bodies[name]
	return ok
}

func (t *Templates) Names() []string {
	names := make([]string, 0, len(t.bodies))
	for name := range t.bodies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render returns the subject and the full HTML document for template name.
func (t *Templates) Render(name string, data map[string]interface{}) (string, string, error) {
	subj, ok := t.subjects[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var sb bytes.Buffer
	if err := subj.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}

	var bb bytes.Buffer
	if err := t.bodies[name].Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", name, err)
	}

	var doc bytes.Buffer
	err := t.layout.Execute(&doc, map[string]interface{}{
		"Body":    htmltemplate.HTML(bb.String()),
		"AppName": data["AppName"],
	})
	if err != nil {
		return "", "", fmt.Errorf("render layout: %w", err)
	}
	return sb.String(), doc.String(), nil
}
