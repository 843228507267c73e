package graph

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const graphScope = "https://graph.microsoft.com/.default"

// credentials hands out Graph access tokens obtained with the OAuth2 client
// credentials grant. A token is reused until oauth2.Token.Valid reports it
// expired. Safe for concurrent use.
type credentials struct {
	conf   clientcredentials.Config
	client *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

func newCredentials(tokenURL, clientID, clientSecret string, client *http.Client) *credentials {
	return &credentials{
		conf: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
	}
}

// Token returns the cached token, or fetches a new one when there is none or
// it has expired.
func (c *credentials) Token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.Valid() {
		return c.tok, nil
	}
	return c.fetch(ctx)
}

// Renew drops the cached token and fetches a new one. Send calls it once
// after the API rejects a token with 401.
func (c *credentials) Renew(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tok = nil
	return c.fetch(ctx)
}

// fetch requests a token from the token endpoint. The caller must hold c.mu.
func (c *credentials) fetch(ctx context.Context) (*oauth2.Token, error) {
	if c.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	}

	tok, err := c.conf.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire Graph token: %w", err)
	}
	c.tok = tok
	return tok, nil
}
