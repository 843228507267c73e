// Package ses implements a Transport that sends messages via AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mimemail/internal/email"
)

// ErrNoRecipients is returned when the envelope names no recipient.
var ErrNoRecipients = errors.New("message has no recipients")

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// Transport sends rendered messages through the SES v2 raw content API.
type Transport struct {
	sender string
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Transport with the given configuration.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Transport{
		sender: cfg.Sender,
		client: sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI) *Transport {
	return &Transport{
		sender: sender,
		client: client,
	}
}

// Send delivers env as a raw MIME message. The envelope sender is the
// configured sender, or the "-f" address of env when none is configured.
// Errors are not retried here beyond what the SDK retryer does.
func (s *Transport) Send(ctx context.Context, env *email.Envelope) error {
	input, err := buildInput(s.sender, env)
	if err != nil {
		return err
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		slog.Warn("SES API error", "error", err)
		return fmt.Errorf("SES API request failed: %w", err)
	}

	slog.Info("message sent via SES",
		"message_id", aws.ToString(out.MessageId),
		"recipients", len(input.Destination.ToAddresses),
	)
	return nil
}

// Name returns the transport name.
func (s *Transport) Name() string {
	return "ses"
}

// buildInput creates the SendEmailInput for env.
func buildInput(sender string, env *email.Envelope) (*sesv2.SendEmailInput, error) {
	to := env.Recipients()
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	from := sender
	if from == "" {
		from = env.Sender()
	}

	raw := env.Bytes()
	if from != "" && env.Header("From") == "" {
		raw = append([]byte("From: "+from+"\r\n"), raw...)
	}

	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if from != "" {
		input.FromEmailAddress = aws.String(from)
	}
	return input, nil
}
