package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shineum/mimemail/internal/email"
)

// Config holds the configuration for creating a Transport.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// Transport sends messages through the Microsoft Graph sendMail endpoint
// using OAuth2 client credentials. The rendered message is posted as base64
// MIME, so Graph delivers it exactly as built.
type Transport struct {
	graphURL   string
	httpClient *http.Client
	creds      *credentials
}

// New creates a new Transport with the given configuration.
func New(cfg Config) *Transport {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)

	client := &http.Client{Timeout: 30 * time.Second}

	return &Transport{
		graphURL:   fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", url.PathEscape(cfg.Sender)),
		httpClient: client,
		creds:      newCredentials(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides creates a Transport with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, graphURL, tokenURL string, client *http.Client) *Transport {
	return &Transport{
		graphURL:   graphURL,
		httpClient: client,
		creds:      newCredentials(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send posts env to the sendMail endpoint. A 401 response triggers one token
// refresh and a second attempt; any other failure is returned as *sendError.
func (g *Transport) Send(ctx context.Context, env *email.Envelope) error {
	body := base64.StdEncoding.EncodeToString(env.Bytes())

	err := g.doSendRequest(ctx, body)
	var sendErr *sendError
	if errors.As(err, &sendErr) && sendErr.statusCode == http.StatusUnauthorized {
		slog.Info("refreshing Graph API token after 401")
		if _, refreshErr := g.creds.Renew(ctx); refreshErr != nil {
			return fmt.Errorf("token refresh failed: %w", refreshErr)
		}
		err = g.doSendRequest(ctx, body)
	}
	if err != nil {
		return err
	}

	slog.Info("message sent via Graph API", "bytes", len(body))
	return nil
}

// Name returns the transport name.
func (g *Transport) Name() string {
	return "graph"
}

// doSendRequest performs a single HTTP request to the Graph API sendMail endpoint.
func (g *Transport) doSendRequest(ctx context.Context, body string) error {
	tok, err := g.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	tok.SetAuthHeader(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(respBody, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return classifyError(resp.StatusCode, graphErrResp.Error.Code, graphErrResp.Error.Message)
	}

	return classifyError(resp.StatusCode, "", string(respBody))
}

// sendError is a non-success response from the sendMail endpoint.
type sendError struct {
	message    string
	code       string
	statusCode int
	permanent  bool
}

func (e *sendError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

// Temporary reports whether the same request may succeed later.
func (e *sendError) Temporary() bool {
	return !e.permanent
}

// classifyError categorizes an HTTP error response. Rate limiting, expired
// tokens and server errors are temporary; everything else is permanent.
func classifyError(statusCode int, code, message string) *sendError {
	err := &sendError{
		message:    message,
		code:       code,
		statusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		err.permanent = false
	default:
		err.permanent = true
	}

	return err
}
