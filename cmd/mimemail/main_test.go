package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shineum/mimemail/internal/config"
	"github.com/shineum/mimemail/internal/mail"
)

type tempError struct{ temporary bool }

func (e tempError) Error() string   { return "temp" }
func (e tempError) Temporary() bool { return e.temporary }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{
		"-to", "a@example.com",
		"-subject", "Hello",
		"-message-file", "body.txt",
		"-attach", "a.pdf",
		"-attach", "b.csv;text/csv;data.csv",
		"-header", "X-Mailer: mimemail",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opts.to != "a@example.com" {
		t.Errorf("to: got %q, want %q", opts.to, "a@example.com")
	}
	if opts.subject != "Hello" {
		t.Errorf("subject: got %q, want %q", opts.subject, "Hello")
	}
	if len(opts.attachments) != 2 {
		t.Errorf("attachments: got %d, want 2", len(opts.attachments))
	}
	if len(opts.headers) != 1 || opts.headers[0] != "X-Mailer: mimemail" {
		t.Errorf("headers: got %v, want [X-Mailer: mimemail]", opts.headers)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing to", args: []string{"-message-file", "m.txt"}},
		{name: "missing message file", args: []string{"-to", "a@example.com"}},
		{name: "extra arguments", args: []string{"-to", "a@example.com", "-message-file", "m.txt", "extra"}},
		{name: "unknown flag", args: []string{"-bogus"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseFlags(tt.args, &bytes.Buffer{}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		wantName  string
		wantValue string
		wantErr   bool
	}{
		{raw: "X-Mailer: mimemail", wantName: "X-Mailer", wantValue: "mimemail"},
		{raw: "Reply-To:a@example.com", wantName: "Reply-To", wantValue: "a@example.com"},
		{raw: "X-Empty:", wantName: "X-Empty", wantValue: ""},
		{raw: "no colon", wantErr: true},
		{raw: ": value", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		name, value, err := parseHeader(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHeader(%q): got error %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if name != tt.wantName || value != tt.wantValue {
			t.Errorf("parseHeader(%q): got (%q, %q), want (%q, %q)", tt.raw, name, value, tt.wantName, tt.wantValue)
		}
	}
}

func TestParseAttachment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		wantType string
		wantName string
	}{
		{raw: "/tmp/report.pdf", wantType: "", wantName: "report.pdf"},
		{raw: "/tmp/report.pdf;application/pdf", wantType: "application/pdf", wantName: "report.pdf"},
		{raw: "/tmp/r.bin;application/pdf;Q1 report.pdf", wantType: "application/pdf", wantName: "Q1 report.pdf"},
		{raw: "/tmp/r.bin;;a/b.txt", wantType: "", wantName: "a_b.txt"},
	}

	for _, tt := range tests {
		tt := tt
		a := parseAttachment(tt.raw)
		if !a.Valid() {
			t.Errorf("parseAttachment(%q): attachment is not valid", tt.raw)
		}
		if a.ContentType() != tt.wantType {
			t.Errorf("parseAttachment(%q) ContentType: got %q, want %q", tt.raw, a.ContentType(), tt.wantType)
		}
		if a.Name() != tt.wantName {
			t.Errorf("parseAttachment(%q) Name: got %q, want %q", tt.raw, a.Name(), tt.wantName)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Mail: config.MailConfig{From: "cfg@example.com", FromName: "Config"}}
	opts := &options{
		to:          "a@example.com",
		subject:     "Report",
		messageFile: "-",
		htmlFile:    writeFile(t, "body.html", "<p>Hi</p>"),
		headers:     multiFlag{"X-Mailer: mimemail"},
		attachments: multiFlag{writeFile(t, "data.csv", "a,b\n") + ";text/csv"},
	}

	b, err := buildMessage(cfg, opts, strings.NewReader("Hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, err := b.Build(opts.to)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if env.Header("From") != "Config <cfg@example.com>" {
		t.Errorf("From: got %q, want %q", env.Header("From"), "Config <cfg@example.com>")
	}
	if env.Header("X-Mailer") != "mimemail" {
		t.Errorf("X-Mailer: got %q, want %q", env.Header("X-Mailer"), "mimemail")
	}
	if env.Sender() != "cfg@example.com" {
		t.Errorf("Sender: got %q, want %q", env.Sender(), "cfg@example.com")
	}
	if !strings.HasPrefix(env.Header("Content-Type"), "multipart/mixed;") {
		t.Errorf("Content-Type: got %q, want multipart/mixed", env.Header("Content-Type"))
	}
	if !strings.Contains(env.Body, `filename="data.csv"`) {
		t.Error("body should name the attachment data.csv")
	}
}

func TestBuildMessage_FromFlagOverridesConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Mail: config.MailConfig{From: "cfg@example.com", FromName: "Config"}}
	opts := &options{from: "cli@example.com", messageFile: "-"}

	b, err := buildMessage(cfg, opts, strings.NewReader("Hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env, err := b.Build("a@example.com")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if env.Header("From") != "cli@example.com" {
		t.Errorf("From: got %q, want %q", env.Header("From"), "cli@example.com")
	}
}

func TestBuildMessage_Errors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}

	_, err := buildMessage(cfg, &options{messageFile: "/nonexistent/body.txt"}, strings.NewReader(""))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing body: got %v, want %v", err, os.ErrNotExist)
	}

	_, err = buildMessage(cfg, &options{messageFile: "-", headers: multiFlag{"broken"}}, strings.NewReader(""))
	if err == nil {
		t.Error("invalid header: expected error, got nil")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "temporary", err: fmt.Errorf("send: %w", tempError{temporary: true}), want: exitTempFail},
		{name: "permanent", err: tempError{temporary: false}, want: exitFailure},
		{name: "incomplete", err: mail.ErrIncomplete, want: exitUsage},
		{name: "other", err: errors.New("boom"), want: exitFailure},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{name: "stdout", cfg: config.Config{Transport: config.TransportStdout}, want: "stdout"},
		{name: "smtp", cfg: config.Config{Transport: config.TransportSMTP, SMTP: config.SMTPConfig{Addr: "localhost:25"}}, want: "smtp"},
		{name: "graph", cfg: config.Config{Transport: config.TransportGraph}, want: "graph"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := selectTransport(context.Background(), &tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Name() != tt.want {
				t.Errorf("Name: got %q, want %q", tr.Name(), tt.want)
			}
		})
	}

	if _, err := selectTransport(context.Background(), &config.Config{Transport: "pigeon"}); !errors.Is(err, config.ErrUnknownTransport) {
		t.Errorf("unknown transport: got %v, want %v", err, config.ErrUnknownTransport)
	}
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-subject", "S"}, strings.NewReader(""), &stderr); code != exitUsage {
		t.Errorf("exit code: got %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "-to is required") {
		t.Errorf("stderr: got %q, want it to mention -to", stderr.String())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	configPath := writeFile(t, "config.yaml", "transport: smtp\n")
	for _, env := range []string{"TRANSPORT", "SMTP_ADDR", "LOG_LEVEL"} {
		t.Setenv(env, "")
	}

	code := run(context.Background(),
		[]string{"-config", configPath, "-to", "a@example.com", "-message-file", "-"},
		strings.NewReader("Hi"), &bytes.Buffer{})
	if code != exitFailure {
		t.Errorf("exit code: got %d, want %d", code, exitFailure)
	}
}
