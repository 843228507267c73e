package ses

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/mimemail/internal/email"
	"github.com/shineum/mimemail/internal/mail"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func newEnvelope(t *testing.T, b *mail.Builder, to string) *email.Envelope {
	t.Helper()

	env, err := b.Build(to)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return env
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClient("sender@example.com", &mockSESClient{})
	if got := p.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_RawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	env := newEnvelope(t, mail.New().
		From("sender@example.com", "Sender").
		Subject("Test Subject").
		Message("Hello, World!"), "to@example.com")

	if err := p.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw email content, got nil")
	}
	if input.Content.Simple != nil {
		t.Error("expected no simple content when using raw message")
	}
	if got := aws.ToString(input.FromEmailAddress); got != "sender@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "sender@example.com")
	}
	if !bytes.Equal(input.Content.Raw.Data, env.Bytes()) {
		t.Errorf("Raw data: got %q, want %q", input.Content.Raw.Data, env.Bytes())
	}
}

func TestSend_WithRecipients(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	env := newEnvelope(t, mail.New().Subject("Multi-recipient").Message("Hello"),
		"to1@example.com, Second <to2@example.com>")

	if err := p.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dest := mock.lastInput.Destination
	if len(dest.ToAddresses) != 2 {
		t.Fatalf("ToAddresses: got %d, want 2", len(dest.ToAddresses))
	}
	if dest.ToAddresses[1] != "to2@example.com" {
		t.Errorf("ToAddresses[1]: got %q, want %q", dest.ToAddresses[1], "to2@example.com")
	}
}

func TestSend_SenderFromEnvelope(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("", mock)

	env := newEnvelope(t, mail.New().
		From("owner@example.com", "").
		Subject("S").
		Message("M"), "to@example.com")

	if err := p.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := aws.ToString(mock.lastInput.FromEmailAddress); got != "owner@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "owner@example.com")
	}
}

func TestSend_AddsMissingFromHeader(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	env := newEnvelope(t, mail.New().Subject("S").Message("M"), "to@example.com")

	if err := p.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := string(mock.lastInput.Content.Raw.Data)
	if !strings.HasPrefix(raw, "From: sender@example.com\r\n") {
		t.Errorf("raw message should start with From header, got %q", raw[:min(len(raw), 60)])
	}
}

func TestSend_NoRecipients(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	err := p.Send(context.Background(), &email.Envelope{Subject: "S", Body: "x"})
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("error: got %v, want %v", err, ErrNoRecipients)
	}
	if mock.callCount != 0 {
		t.Errorf("call count: got %d, want 0", mock.callCount)
	}
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("persistent error")
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, apiErr
		},
	}
	p := NewWithClient("sender@example.com", mock)

	env := newEnvelope(t, mail.New().Subject("Fail Test").Message("Hello"), "to@example.com")

	err := p.Send(context.Background(), env)
	if !errors.Is(err, apiErr) {
		t.Fatalf("error: got %v, want wrapped %v", err, apiErr)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestSend_ContextPassedThrough(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, ctx.Err()
		},
	}
	p := NewWithClient("sender@example.com", mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	env := newEnvelope(t, mail.New().Subject("Cancel Test").Message("Hello"), "to@example.com")

	err := p.Send(ctx, env)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want %v", err, context.Canceled)
	}
}
