package notifications

import (
	"context"
	"fmt"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SMSSender delivers short text alerts for urgent notifications.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
	Enabled() bool
}

func NewSMSSender(ctx context.Context, cfg config.SMSConfig) (SMSSender, error) {
	if cfg.Provider != "sns" {
		return NoopSMS{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSSender{client: sns.NewFromConfig(awsCfg)}, nil
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSSender struct {
	client snsAPI
}

func (s *SNSSender) Enabled() bool { return true }

func (s *SNSSender) SendSMS(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("missing phone number")
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}
	return nil
}

type NoopSMS struct{}

func (NoopSMS) Enabled() bool { return false }

func (NoopSMS) SendSMS(context.Context, string, string) error { return nil }
