package provider

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// E.164: leading +, country code, up to 15 digits total.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// SNSSender sends SMS via AWS SNS.
type SNSSender struct {
	client *sns.Client
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSSender creates an SNS SMS sender using the default AWS
// credential chain.
func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSSender{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send publishes an SMS via AWS SNS, folding any SDK error into the result.
func (s *SNSSender) Send(ctx context.Context, msg SmsMessage) DeliveryResult {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.PhoneNumber),
		Message:     aws.String(msg.Message),
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		s.logger.Error("sns publish failed",
			zap.Error(err),
			zap.String("phone_number", msg.PhoneNumber),
		)
		return Failure(s.Name(), err)
	}

	s.logger.Info("SMS sent via SNS",
		zap.String("phone_number", msg.PhoneNumber),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return DeliveryResult{
		Success:           true,
		Provider:          s.Name(),
		ProviderMessageID: aws.ToString(result.MessageId),
	}
}

// Validate checks the phone number is in E.164 format.
func (s *SNSSender) Validate(phoneNumber string) bool {
	return phonePattern.MatchString(phoneNumber)
}

func (s *SNSSender) Name() string {
	return "AWS_SNS"
}
