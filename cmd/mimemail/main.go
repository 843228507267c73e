// Package main is the entry point for the mimemail command. It builds a MIME
// message from flags and hands it to the configured transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shineum/mimemail/internal/attachment"
	"github.com/shineum/mimemail/internal/config"
	"github.com/shineum/mimemail/internal/mail"
	"github.com/shineum/mimemail/internal/transport"
	"github.com/shineum/mimemail/internal/transport/graph"
	"github.com/shineum/mimemail/internal/transport/relay"
	"github.com/shineum/mimemail/internal/transport/ses"
	"github.com/shineum/mimemail/internal/transport/stdout"
)

// Exit codes follow sysexits.h where one applies.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitTempFail = 75
)

// options holds the parsed command line.
type options struct {
	configPath  string
	to          string
	subject     string
	messageFile string
	htmlFile    string
	from        string
	fromName    string
	attachments multiFlag
	headers     multiFlag
}

// multiFlag collects every occurrence of a repeatable flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ", ") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, aborting delivery", "signal", sig)
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	// Load configuration
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return exitFailure
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitFailure
	}

	b, err := buildMessage(cfg, opts, stdin)
	if err != nil {
		slog.Error("failed to prepare message", "error", err)
		return exitUsage
	}

	// Select email delivery transport
	t, err := selectTransport(ctx, cfg)
	if err != nil {
		slog.Error("failed to create transport", "error", err)
		return exitFailure
	}

	if err := b.Send(ctx, t, opts.to); err != nil {
		slog.Error("failed to send message",
			"transport", t.Name(),
			"to", opts.to,
			"error", err,
		)
		return exitCode(err)
	}

	slog.Info("message sent", "transport", t.Name(), "to", opts.to)
	return exitOK
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("mimemail", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (optional)")
	fs.StringVar(&opts.to, "to", "", "recipient list, comma separated")
	fs.StringVar(&opts.subject, "subject", "", "message subject")
	fs.StringVar(&opts.messageFile, "message-file", "", `plain text body file, "-" for stdin`)
	fs.StringVar(&opts.htmlFile, "html-file", "", "HTML body file (optional)")
	fs.StringVar(&opts.from, "from", "", "sender address (overrides MAIL_FROM)")
	fs.StringVar(&opts.fromName, "from-name", "", "sender display name (overrides MAIL_FROM_NAME)")
	fs.Var(&opts.attachments, "attach", "attachment as path[;type[;name]] (repeatable)")
	fs.Var(&opts.headers, "header", `extra header as "Name: value" (repeatable)`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.to == "" {
		return nil, errors.New("-to is required")
	}
	if opts.messageFile == "" {
		return nil, errors.New("-message-file is required")
	}
	return opts, nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// buildMessage assembles a Builder from the configuration and command line.
// Attachment files are only opened when the message is built.
func buildMessage(cfg *config.Config, opts *options, stdin io.Reader) (*mail.Builder, error) {
	b := mail.New().Subject(opts.subject)

	from, fromName := cfg.Mail.From, cfg.Mail.FromName
	if opts.from != "" {
		from, fromName = opts.from, opts.fromName
	}
	if from != "" {
		b.From(from, fromName)
	}

	text, err := readBody(opts.messageFile, stdin)
	if err != nil {
		return nil, err
	}
	b.Message(text)

	if opts.htmlFile != "" {
		html, err := readBody(opts.htmlFile, stdin)
		if err != nil {
			return nil, err
		}
		b.HTMLMessage(html)
	}

	for _, h := range opts.headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		b.Header(name, value)
	}

	for _, spec := range opts.attachments {
		if err := b.Attach(parseAttachment(spec)); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func readBody(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read body %s: %w", path, err)
	}
	return string(data), nil
}

// parseHeader splits a "Name: value" flag value.
func parseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q: want \"Name: value\"", raw)
	}
	return name, strings.TrimSpace(value), nil
}

// parseAttachment turns a path[;type[;name]] flag value into a file
// attachment. The display name defaults to the base name of the path.
func parseAttachment(raw string) *attachment.Attachment {
	fields := strings.SplitN(raw, ";", 3)
	path := fields[0]

	var contentType, name string
	if len(fields) > 1 {
		contentType = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		name = fields[2]
	}
	if name == "" {
		name = filepath.Base(path)
	}

	return attachment.FromFile(path, contentType, name)
}

// selectTransport creates the delivery backend named by the configuration.
func selectTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	switch name := cfg.SelectedTransport(); name {
	case config.TransportSMTP:
		slog.Info("using SMTP relay transport",
			"addr", cfg.SMTP.Addr,
			"auth_enabled", cfg.AuthEnabled(),
		)
		return relay.New(relay.Config{
			Addr:               cfg.SMTP.Addr,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			Sender:             cfg.Mail.From,
			TLSCAFile:          cfg.SMTP.TLSCAFile,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})

	case config.TransportSES:
		slog.Info("using AWS SES transport",
			"region", cfg.SES.Region,
			"sender", cfg.SES.Sender,
		)
		return ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})

	case config.TransportGraph:
		slog.Info("using Microsoft Graph transport",
			"sender", cfg.Graph.Sender,
		)
		return graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		}), nil

	case config.TransportStdout:
		slog.Info("using stdout transport")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, name)
	}
}

// exitCode maps a delivery error to a process exit code. Failures a
// transport reports as temporary exit with EX_TEMPFAIL so callers can retry.
func exitCode(err error) int {
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return exitTempFail
	}
	if errors.Is(err, mail.ErrIncomplete) {
		return exitUsage
	}
	return exitFailure
}
