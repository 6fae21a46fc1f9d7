// Package client provides a Go client for the campuskit API. It manages the
// token pair through a pluggable SessionStore and transparently renews the
// access token once when a request comes back 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

// ErrSessionExpired is returned when the session cannot be renewed. The
// local session has already been cleared; the caller should log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

const verifyUnavailableMessage = "Verification is temporarily unavailable. Please try again."

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "https://api.example.com".
	BaseURL string
	// Store persists the session. Defaults to an in-memory store.
	Store SessionStore
	// HTTPClient overrides the transport. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
	// Logger is optional.
	Logger *zap.Logger
}

// Client talks to the API on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
	logger  *zap.Logger

	// renewMu serialises token renewal so concurrent 401s trigger a
	// single refresh call.
	renewMu sync.Mutex
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemorySessionStore()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		store:   store,
		logger:  logger,
	}, nil
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// Login authenticates with the server and stores the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp models.LoginResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, "", &resp); err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Logout revokes the refresh token server-side and clears the local session.
// The server call is best-effort: the local session is cleared regardless, so
// the user is logged out even when the server is unreachable.
func (c *Client) Logout(ctx context.Context) error {
	session, err := c.store.Load()
	if err == nil && session != nil && session.RefreshToken != "" {
		body := models.RefreshTokenRequest{RefreshToken: session.RefreshToken}
		if callErr := c.call(ctx, http.MethodPost, "/auth/logout", body, session.AccessToken, nil); callErr != nil {
			c.logger.Warn("server-side logout failed", zap.Error(callErr))
		}
	}
	return c.store.Clear()
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifyCertificate checks a certificate against the public verification
// endpoint. It never returns a transport error: failures collapse to an
// invalid result so callers can render it directly.
func (c *Client) VerifyCertificate(ctx context.Context, certificateID string) *models.VerificationResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/verify/"+strings.TrimSpace(certificateID), nil)
	if err != nil {
		return &models.VerificationResult{Valid: false, Error: verifyUnavailableMessage}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("certificate verification request failed", zap.Error(err))
		return &models.VerificationResult{Valid: false, Error: verifyUnavailableMessage}
	}
	defer resp.Body.Close()

	// Misses answer 404 (and blank identifiers 400) with the same bare
	// shape, so any decodable body is a renderable result carrying the
	// server's own error message.
	var result models.VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("certificate verification response malformed", zap.Error(err))
		return &models.VerificationResult{Valid: false, Error: verifyUnavailableMessage}
	}
	if !result.Valid && result.Error == "" {
		result.Error = verifyUnavailableMessage
	}
	return &result
}

// Do performs an authenticated request and decodes the response data into
// out. On a 401 it renews the access token once and retries the request; if
// renewal fails the session is cleared and ErrSessionExpired is returned.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	session, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	token := ""
	if session != nil {
		token = session.AccessToken
	}

	status, err := c.roundTrip(ctx, method, path, body, token, out)
	if err != nil || status != http.StatusUnauthorized {
		return err
	}

	renewed, err := c.renewAccessToken(ctx, token)
	if err != nil {
		return err
	}

	status, err = c.roundTrip(ctx, method, path, body, renewed, out)
	if err == nil && status == http.StatusUnauthorized {
		// The renewed token was rejected too. Nothing left to try.
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear session", zap.Error(clearErr))
		}
		return ErrSessionExpired
	}
	return err
}

// renewAccessToken exchanges the refresh token for a new access token. Only
// the access token is replaced: the refresh token keeps its original expiry.
// Concurrent callers share one renewal; latecomers reuse the fresh token.
func (c *Client) renewAccessToken(ctx context.Context, staleToken string) (string, error) {
	c.renewMu.Lock()
	defer c.renewMu.Unlock()

	session, err := c.store.Load()
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.RefreshToken == "" {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear session", zap.Error(clearErr))
		}
		return "", ErrSessionExpired
	}
	if session.AccessToken != "" && session.AccessToken != staleToken {
		// Another goroutine renewed while we waited for the lock.
		return session.AccessToken, nil
	}

	var resp models.RefreshTokenResponse
	body := models.RefreshTokenRequest{RefreshToken: session.RefreshToken}
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", body, "", &resp); err != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear session", zap.Error(clearErr))
		}
		return "", ErrSessionExpired
	}

	session.AccessToken = resp.AccessToken
	if err := c.store.Save(session); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return resp.AccessToken, nil
}

// call performs a single request and turns non-2xx statuses into errors.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, token string, out interface{}) error {
	status, err := c.roundTrip(ctx, method, path, body, token, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body interface{}, token string, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil {
			return resp.StatusCode, nil
		}
		// The public verification endpoint replies with a bare object,
		// everything else with the standard envelope.
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil && env.Data != nil {
			return resp.StatusCode, json.Unmarshal(env.Data, out)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		return resp.StatusCode, env.Error
	}
	return resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
}
