package rte

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DridrM/renewable-energy-forecast/internal/api"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

type fakeService struct {
	tokens    atomic.Int32
	queries   atomic.Int32
	expiresIn int
	status    int
	body      string
	lastQuery url.Values
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token/oauth/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Basic c2VjcmV0", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultContentType, r.Header.Get("Content-Type"))
		n := f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token": "tok%d", "token_type": "Bearer", "expires_in": %d}`, n, f.expiresIn)
	})
	mux.HandleFunc("/open_api/actual_generation/v1/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, fmt.Sprintf("Bearer tok%d", f.tokens.Load()), r.Header.Get("Authorization"))
		f.queries.Add(1)
		f.lastQuery = r.URL.Query()
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		fmt.Fprint(w, f.body)
	})
	return mux
}

func newTestClient(t *testing.T, svc *fakeService, now func() time.Time) *Client {
	t.Helper()
	server := httptest.NewServer(svc.handler(t))
	t.Cleanup(server.Close)

	opts := []Option{WithHTTPClient(server.Client())}
	if now != nil {
		opts = append(opts, WithNow(now))
	}
	return New(Config{BaseURL: server.URL + "/", ClientSecret: "c2VjcmV0"}, zerolog.Nop(), opts...)
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultTokenPath, c.cfg.TokenPath)
	assert.Equal(t, DefaultGenerationPath, c.cfg.GenerationPath)
	assert.Equal(t, DefaultContentType, c.cfg.ContentType)
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{expiresIn: 7200}
	c := newTestClient(t, svc, func() time.Time { return now })

	token, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok1", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, now.Add(2*time.Hour), token.ExpiresAt())
}

func TestFetchReusesTokenUntilExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{expiresIn: 3600, body: `{"actual_generations_per_unit": []}`}
	c := newTestClient(t, svc, func() time.Time { return now })

	params := url.Values{"start_date": {"2024-01-01T00:00:00+01:00"}}
	body, err := c.Fetch(context.Background(), resource.Unit, params)
	require.NoError(t, err)
	assert.JSONEq(t, svc.body, string(body))
	assert.Equal(t, "2024-01-01T00:00:00+01:00", svc.lastQuery.Get("start_date"))

	now = now.Add(59 * time.Minute)
	_, err = c.Fetch(context.Background(), resource.Unit, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), svc.tokens.Load())

	now = now.Add(time.Minute)
	_, err = c.Fetch(context.Background(), resource.Unit, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), svc.tokens.Load())
	assert.Equal(t, int32(3), svc.queries.Load())
}

func TestFetchUpstreamError(t *testing.T) {
	svc := &fakeService{expiresIn: 3600, status: http.StatusTooManyRequests, body: `{"error": "rate limited"}`}
	c := newTestClient(t, svc, nil)

	_, err := c.Fetch(context.Background(), resource.ProductionType, nil)
	require.Error(t, err)

	var upstream *api.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Equal(t, `{"error": "rate limited"}`, string(upstream.Payload))
}

func TestFetchDropsTokenOnUnauthorized(t *testing.T) {
	svc := &fakeService{expiresIn: 3600, status: http.StatusUnauthorized, body: `{"error": "invalid_token"}`}
	c := newTestClient(t, svc, nil)

	_, err := c.Fetch(context.Background(), resource.Mix15Min, nil)
	require.Error(t, err)

	svc.status = 0
	svc.body = `{"generation_mix_15min_time_scale": []}`
	_, err = c.Fetch(context.Background(), resource.Mix15Min, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), svc.tokens.Load())
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "invalid_client"}`)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zerolog.Nop())
	_, err := c.Authenticate(context.Background())

	var upstream *api.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Zero(t, upstream.StatusCode)
}

func TestFetchHonorsContext(t *testing.T) {
	svc := &fakeService{expiresIn: 3600}
	c := newTestClient(t, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, resource.Unit, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
