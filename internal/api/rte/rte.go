// Package rte provides an API client for the grid-operator generation data service.
//
// The service uses the OAuth client-credentials flow: a POST with the Basic
// client secret yields a bearer token, which then authorizes the GET calls on
// the generation resources.
package rte

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/api"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

const (
	// DefaultBaseURL is the production endpoint of the service.
	DefaultBaseURL = "https://digital.iservices.rte-france.com"
	// DefaultTokenPath is the OAuth token resource.
	DefaultTokenPath = "/token/oauth/"
	// DefaultGenerationPath prefixes every generation resource name.
	DefaultGenerationPath = "/open_api/actual_generation/v1/"
	// DefaultContentType is sent with the token request.
	DefaultContentType = "application/x-www-form-urlencoded"

	// maxBodySize bounds a single response; the widest window of the hourly
	// per-type resource stays well below it.
	maxBodySize = 64 << 20
)

// Config holds the connection settings of the service.
type Config struct {
	BaseURL        string
	TokenPath      string
	GenerationPath string
	// ClientSecret is the base64 encoded "id:secret" pair.
	ClientSecret string
	ContentType  string
}

// Token is an access token returned by the token resource.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`

	expiresAt time.Time
}

// ExpiresAt returns when the token stops being accepted.
func (t Token) ExpiresAt() time.Time {
	return t.expiresAt
}

func (t Token) header() string {
	return t.TokenType + " " + t.AccessToken
}

// Client queries the generation resources of the service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger

	mu    sync.Mutex
	token *Token
}

var _ api.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithNow replaces the clock used for token expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new Client. Empty Config fields fall back to the defaults.
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath
	}
	if cfg.GenerationPath == "" {
		cfg.GenerationPath = DefaultGenerationPath
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		now:    time.Now,
		logger: logger.With().Str("component", "rte").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate requests a fresh access token.
func (c *Client) Authenticate(ctx context.Context) (Token, error) {
	endpoint := c.cfg.BaseURL + c.cfg.TokenPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Token{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.ClientSecret)
	req.Header.Set("Content-Type", c.cfg.ContentType)

	c.logger.Debug().Str("url", endpoint).Msg("requesting access token")

	body, err := c.do(req)
	if err != nil {
		return Token{}, err
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, &api.UpstreamError{Reason: "token response is not JSON", Payload: body}
	}
	if token.AccessToken == "" {
		return Token{}, &api.UpstreamError{Reason: "token response carries no access_token", Payload: body}
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	token.expiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug().
		Str("token_type", token.TokenType).
		Time("expires_at", token.expiresAt).
		Msg("access token acquired")

	return token, nil
}

// Query performs an authorized GET of path with params and returns the raw body.
func (c *Client) Query(ctx context.Context, token Token, path string, params url.Values) ([]byte, error) {
	endpoint := c.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", token.header())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", endpoint).Msg("querying generation resource")

	return c.do(req)
}

// Fetch queries a generation resource, authenticating on first use and again
// once the held token has expired.
func (c *Client) Fetch(ctx context.Context, kind resource.Kind, params url.Values) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	body, err := c.Query(ctx, token, c.cfg.GenerationPath+kind.Name(), params)
	if err != nil {
		var upstream *api.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
			c.dropToken()
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) currentToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.now().Before(c.token.expiresAt) {
		return *c.token, nil
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return Token{}, err
	}
	c.token = &token
	return token, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("url", req.URL.String()).
			Bytes("payload", body).
			Msg("upstream returned an error")
		return nil, &api.UpstreamError{
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			Payload:    body,
		}
	}
	return body, nil
}
