package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESSender struct {
	client sesAPI
	source string
}

func NewSESSender(ctx context.Context, region, fromEmail, fromName string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESSender(ses.NewFromConfig(cfg), fromEmail, fromName), nil
}

func newSESSender(client sesAPI, fromEmail, fromName string) *SESSender {
	source := fromEmail
	if fromName != "" {
		source = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &SESSender{client: client, source: source}
}

func (s *SESSender) Provider() string { return "ses" }

func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := validateRecipient(msg.To); err != nil {
		return "", err
	}

	body := &types.Body{Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(s.source),
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
