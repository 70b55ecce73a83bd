package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoSender struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	client      *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
	TextContent string              `json:"textContent,omitempty"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
}

func NewBrevoSender(apiKey, senderEmail, senderName string) *BrevoSender {
	return &BrevoSender{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoSender) Provider() string { return "brevo" }

func (s *BrevoSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := validateRecipient(msg.To); err != nil {
		return "", err
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": msg.To, "name": recipientName(msg)}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("brevo rejected email: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out brevoResponse
	_ = json.Unmarshal(respBody, &out)
	return out.MessageID, nil
}

func validateRecipient(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid recipient email: %q", email)
	}
	return nil
}

func recipientName(msg Message) string {
	if msg.ToName != "" {
		return msg.ToName
	}
	return msg.To[:strings.Index(msg.To, "@")]
}
