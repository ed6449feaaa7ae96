package mailing

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

// SESConfig configures the SES mailer. Empty keys fall back to the default
// AWS credential chain.
type SESConfig struct {
	Region           string
	AccessKey        string
	SecretKey        string
	ConfigurationSet string
}

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers notification email through AWS SES.
type SESMailer struct {
	client           sesAPI
	configurationSet string
	log              *logger.Logger
}

// NewSESMailer loads AWS configuration and creates the SES client.
func NewSESMailer(ctx context.Context, cfg SESConfig) (*SESMailer, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-west-3"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESMailer(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

func newSESMailer(client sesAPI, configurationSet string) *SESMailer {
	return &SESMailer{
		client:           client,
		configurationSet: configurationSet,
		log:              logger.Component("ses"),
	}
}

// Send delivers one message. A rejected send is reported in the result, not
// as an error.
func (m *SESMailer) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("ses: message %s has no recipient", msg.NotificationID)
	}
	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("notification_id"), Value: aws.String(msg.NotificationID)},
		},
	}
	if msg.TextContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	if m.configurationSet != "" {
		input.ConfigurationSetName = aws.String(m.configurationSet)
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.log.Warn("send failed", "recipient", msg.To, "notification_id", msg.NotificationID, "error", err.Error())
		return &domain.SendResult{Success: false, Error: err.Error()}, nil
	}

	messageID := aws.ToString(out.MessageId)
	m.log.Debug("sent", "recipient", msg.To, "message_id", messageID)
	return &domain.SendResult{Success: true, MessageID: messageID, SentAt: time.Now()}, nil
}

// LogMailer records messages in the log instead of sending them. It stands
// in for SES when email delivery is disabled.
type LogMailer struct{ log *logger.Logger }

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer { return &LogMailer{log: logger.Component("mailer")} }

func (m *LogMailer) Send(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	m.log.Info("email suppressed", "recipient", msg.To, "subject", msg.Subject, "notification_id", msg.NotificationID)
	return &domain.SendResult{Success: true, SentAt: time.Now()}, nil
}
