package provider

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SESSender sends email via AWS SES.
type SESSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

// NewSESSender creates an SES email sender using the default AWS
// credential chain.
func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return &SESSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// Send sends an email via AWS SES, folding any SDK error into the result.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) DeliveryResult {
	from := msg.From
	if from == "" {
		from = s.from
	}

	body := &types.Body{}
	if msg.BodyText != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.BodyText),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.BodyHTML != "" {
		body.Html = &types.Content{
			Data:    aws.String(msg.BodyHTML),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: body,
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("ses send failed",
			zap.Error(err),
			zap.String("to", msg.To),
		)
		return Failure(s.Name(), err)
	}

	s.logger.Info("email sent via SES",
		zap.String("to", msg.To),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return DeliveryResult{
		Success:           true,
		Provider:          s.Name(),
		ProviderMessageID: aws.ToString(result.MessageId),
	}
}

// Validate checks the basic email address format.
func (s *SESSender) Validate(address string) bool {
	return emailPattern.MatchString(address)
}

func (s *SESSender) Name() string {
	return "AWS_SES"
}
