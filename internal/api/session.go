// Package api is the HTTP session used to talk to the remote job service.
// It owns authentication, request pacing and the JSON wire shapes; the
// backend package drives the job protocol on top of it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
)

// Default session settings.
const (
	DefaultBaseURL       = "https://qapi.quantinuum.com/v1/"
	DefaultRetryInterval = 2 * time.Second
	defaultHTTPTimeout   = 60 * time.Second
)

// CredentialsFunc supplies a user name and password for a fresh login.
type CredentialsFunc func(ctx context.Context) (user, password string, err error)

// Config configures a Session.
type Config struct {
	BaseURL           string
	HTTPClient        *http.Client
	Tokens            TokenStore
	Credentials       CredentialsFunc
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds RetrieveJob when the call does not override it. Zero
	// waits until the job is terminal or the context ends.
	Timeout       time.Duration
	RetryInterval time.Duration
}

// Session is an authenticated connection to the job service. It is safe for
// use by several backends at once.
type Session struct {
	baseURL     string
	client      *http.Client
	tokens      TokenStore
	credentials CredentialsFunc
	limiter     *rate.Limiter
	defaults    WaitOptions
	log         *slog.Logger

	loginMu sync.Mutex
}

// NewSession creates a session. Missing fields take package defaults.
func NewSession(cfg Config) *Session {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}

	return &Session{
		baseURL:     baseURL,
		client:      client,
		tokens:      tokens,
		credentials: cfg.Credentials,
		limiter:     rate.NewLimiter(limit, burst),
		defaults:    WaitOptions{Timeout: cfg.Timeout, RetryInterval: retry},
		log:         logging.Component("api"),
	}
}

// URL returns the service base URL.
func (s *Session) URL() string { return s.baseURL }

// WaitDefaults returns the session-wide wait settings.
func (s *Session) WaitDefaults() WaitOptions { return s.defaults }

// do sends an authenticated JSON request and decodes a JSON response into
// out when out is non-nil. Non-2xx responses become *RemoteError, with 401
// and 403 additionally matching ErrUnauthorized.
func (s *Session) do(ctx context.Context, method, path string, body, out any) error {
	token, err := s.idToken(ctx)
	if err != nil {
		return err
	}
	return s.send(ctx, method, path, token, body, out)
}

func (s *Session) send(ctx context.Context, method, path, token string, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrConnection, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrConnection, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRemoteError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Login forces a fresh token pair, first from the stored refresh token and
// then from the credentials provider.
func (s *Session) Login(ctx context.Context) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.tokens.SetIDToken("")
	_, err := s.refreshLocked(ctx)
	return err
}

// Logout discards all stored tokens.
func (s *Session) Logout() {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	s.tokens.Clear()
}

func (s *Session) idToken(ctx context.Context) (string, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	if tok := s.tokens.IDToken(); tok != "" && !tokenExpired(tok, time.Now()) {
		return tok, nil
	}
	return s.refreshLocked(ctx)
}

type loginResponse struct {
	IDToken      string `json:"id-token"`
	RefreshToken string `json:"refresh-token"`
}

func (s *Session) refreshLocked(ctx context.Context) (string, error) {
	if refresh := s.tokens.RefreshToken(); refresh != "" && !tokenExpired(refresh, time.Now()) {
		var resp loginResponse
		err := s.send(ctx, http.MethodPost, "login", "", map[string]string{"refresh-token": refresh}, &resp)
		if err == nil && resp.IDToken != "" {
			s.store(resp)
			return resp.IDToken, nil
		}
		s.log.Debug("refresh token rejected, falling back to credentials", "error", err)
	}

	if s.credentials == nil {
		return "", fmt.Errorf("login: %w", ErrNoCredentials)
	}
	user, password, err := s.credentials(ctx)
	if err != nil {
		return "", fmt.Errorf("get credentials: %w", err)
	}
	var resp loginResponse
	if err := s.send(ctx, http.MethodPost, "login", "", map[string]string{"email": user, "password": password}, &resp); err != nil {
		return "", fmt.Errorf("login as %s: %w", user, err)
	}
	if resp.IDToken == "" {
		return "", fmt.Errorf("login as %s: response carried no id token", user)
	}
	s.store(resp)
	s.log.Info("logged in", "user", user)
	return resp.IDToken, nil
}

func (s *Session) store(resp loginResponse) {
	s.tokens.SetIDToken(resp.IDToken)
	if resp.RefreshToken != "" {
		s.tokens.SetRefreshToken(resp.RefreshToken)
	}
}
