// Package config provides YAML-plus-environment configuration loading for the
// mimemail command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transport names accepted by the TRANSPORT setting.
const (
	TransportStdout = "stdout"
	TransportSMTP   = "smtp"
	TransportSES    = "ses"
	TransportGraph  = "graph"
)

// ErrUnknownTransport is returned by Validate for an unrecognised transport.
var ErrUnknownTransport = errors.New("unknown transport")

// Config holds the complete application configuration.
type Config struct {
	// Transport selects the delivery backend. Empty means auto-detect.
	Transport string        `yaml:"transport"`
	Mail      MailConfig    `yaml:"mail"`
	SMTP      SMTPConfig    `yaml:"smtp"`
	SES       SESConfig     `yaml:"ses"`
	Graph     GraphConfig   `yaml:"graph"`
	Logging   LoggingConfig `yaml:"logging"`
}

// MailConfig holds the default sender of built messages.
type MailConfig struct {
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// SMTPConfig holds SMTP relay configuration.
type SMTPConfig struct {
	Addr               string `yaml:"addr"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	TLSCAFile          string `yaml:"tls_ca_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.Transport = strings.ToLower(cfg.Transport)

	return cfg, nil
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// SESConfigured returns true if the SES region and sender are set. Access
// keys are optional; the default AWS credential chain applies without them.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// SMTPConfigured returns true if a relay address is set.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Addr != ""
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// SelectedTransport returns the configured transport name. When none is set
// it picks the first fully configured backend in the order graph, ses, smtp,
// and falls back to stdout.
func (c *Config) SelectedTransport() string {
	if c.Transport != "" {
		return c.Transport
	}
	switch {
	case c.GraphConfigured():
		return TransportGraph
	case c.SESConfigured():
		return TransportSES
	case c.SMTPConfigured():
		return TransportSMTP
	default:
		return TransportStdout
	}
}

// Validate checks that the selected transport has the settings it needs.
func (c *Config) Validate() error {
	switch name := c.SelectedTransport(); name {
	case TransportStdout:
		return nil
	case TransportSMTP:
		if !c.SMTPConfigured() {
			return errors.New("smtp transport selected but SMTP_ADDR is required")
		}
	case TransportSES:
		if !c.SESConfigured() {
			return errors.New("ses transport selected but SES_REGION and SES_SENDER are required")
		}
	case TransportGraph:
		if !c.GraphConfigured() {
			return errors.New("graph transport selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
	return nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Transport = strings.ToLower(v)
	}

	if v := os.Getenv("MAIL_FROM"); v != "" {
		c.Mail.From = v
	}
	if v := os.Getenv("MAIL_FROM_NAME"); v != "" {
		c.Mail.FromName = v
	}

	if v := os.Getenv("SMTP_ADDR"); v != "" {
		c.SMTP.Addr = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_TLS_CA_FILE"); v != "" {
		c.SMTP.TLSCAFile = v
	}
	if v := os.Getenv("SMTP_INSECURE_SKIP_VERIFY"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.SMTP.InsecureSkipVerify = skip
		}
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
