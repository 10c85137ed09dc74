// Package ledger is the client side of the credit ledger and generation
// history service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

// CodeTokenExpired is the error code the ledger returns for an expired token.
const CodeTokenExpired = domain.CodeTokenExpired

// maxTokenAttempts bounds the expired-token refresh loop.
const maxTokenAttempts = 2

// Options configures a Client.
type Options struct {
	BaseURL        string
	ServiceKey     string
	TokenTTL       time.Duration
	DefaultBalance int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	Now            func() time.Time
}

// Client calls the ledger service on behalf of users.
type Client struct {
	baseURL        string
	serviceKey     string
	defaultBalance int
	httpClient     *http.Client
	tokens         *cache.Cache
	group          singleflight.Group
	logger         *infra.Logger
	now            func() time.Time
}

// APIError is a non-2xx ledger response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger: status %d (%s): %s", e.Status, e.Code, e.Message)
}

// Unwrap maps statuses onto domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		if e.Code == CodeTokenExpired {
			return domain.ErrTokenExpired
		}
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	}
	return nil
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewClient builds a ledger client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ledger: base url is required")
	}
	if strings.TrimSpace(opts.ServiceKey) == "" {
		return nil, errors.New("ledger: service key is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 50 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		baseURL:        baseURL,
		serviceKey:     opts.ServiceKey,
		defaultBalance: opts.DefaultBalance,
		httpClient:     opts.HTTPClient,
		tokens:         cache.New(opts.TokenTTL, 10*time.Minute),
		logger:         opts.Logger,
		now:            opts.Now,
	}, nil
}

// token returns a cached token for userID or fetches one. Concurrent misses
// for the same user share a single fetch.
func (c *Client) token(ctx context.Context, userID string) (string, error) {
	if v, ok := c.tokens.Get(userID); ok {
		return v.(string), nil
	}
	v, err, _ := c.group.Do("token:"+userID, func() (any, error) {
		if v, ok := c.tokens.Get(userID); ok {
			return v.(string), nil
		}
		body, _ := json.Marshal(map[string]string{"userId": userID})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/token", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Service-Key", c.serviceKey)
		var out tokenResponse
		if err := c.send(req, &out); err != nil {
			return "", fmt.Errorf("ledger: fetch token: %w", err)
		}
		c.tokens.SetDefault(userID, out.Token)
		return out.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh swaps an expired token for a fresh one. A refused refresh is
// returned as is; the next call starts over with a new token.
func (c *Client) refresh(ctx context.Context, userID, expired string) (string, error) {
	c.tokens.Delete(userID)
	v, err, _ := c.group.Do("refresh:"+userID, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh", nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+expired)
		req.Header.Set("X-Service-Key", c.serviceKey)
		var out tokenResponse
		if err := c.send(req, &out); err != nil {
			c.logger.Warn().Err(err).Str("user_id", userID).Msg("ledger: token refresh refused")
			return "", fmt.Errorf("ledger: refresh token: %w", err)
		}
		c.tokens.SetDefault(userID, out.Token)
		return out.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// call performs an authenticated request for userID. An expired token is
// refreshed once; the loop never runs more than maxTokenAttempts times.
func (c *Client) call(ctx context.Context, userID, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("ledger: encode request: %w", err)
		}
	}

	tok, err := c.token(ctx, userID)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("ledger: build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+tok)

		lastErr = c.send(req, out)
		if lastErr == nil || !errors.Is(lastErr, domain.ErrTokenExpired) || attempt == maxTokenAttempts {
			break
		}
		c.logger.Debug().Str("user_id", userID).Msg("ledger: token expired, refreshing")
		if tok, err = c.refresh(ctx, userID, tok); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(raw, "error.code").String(),
			Message: gjson.GetBytes(raw, "error.message").String(),
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ledger: decode response: %w", err)
	}
	return nil
}
