package notifications

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendGridSender struct {
	key  string
	from *sgmail.Email
}

func NewSendGridSender(key, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{key: key, from: sgmail.NewEmail(fromName, fromEmail)}
}

func (s *SendGridSender) Provider() string { return "sendgrid" }

func (s *SendGridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(recipientName(msg), msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func (s *SendGridSender) Send(_ context.Context, msg Message) (string, error) {
	if err := validateRecipient(msg.To); err != nil {
		return "", err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return "", fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sendgrid rejected email: status %d: %s", res.StatusCode, res.Body)
	}
	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
