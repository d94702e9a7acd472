// Package api provides the authenticated HTTP client for the widget
// service. Every operation degrades to a safe empty value on failure —
// transport errors never propagate to callers — and a 401 on any call
// invalidates the session before the fallback is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/widgetstore/wsq/internal/auth"
	"github.com/widgetstore/wsq/internal/config"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/version"
)

// Client is an HTTP client for the widget service API.
type Client struct {
	httpClient *http.Client
	auth       *auth.Manager
	cfg        *config.Config
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(cfg *config.Config, authMgr *auth.Manager) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		auth:   authMgr,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger enables request tracing for debugging.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// envelope is the service's response wrapper. List and detail endpoints use
// {code:0,data}; a few newer endpoints use {success:true,data}.
type envelope struct {
	Code    *int            `json:"code,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e *envelope) ok() bool {
	if e.Code != nil && *e.Code == 0 {
		return true
	}
	return e.Success != nil && *e.Success
}

// do issues a request with the standard auth headers and returns the raw
// body. A 401 invalidates the session before returning; other non-2xx
// statuses and transport failures map to structured errors for the caller
// to log and swallow.
func (c *Client) do(ctx context.Context, method, url string, body any, extra map[string]string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range c.auth.Headers(ctx) {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api response", "status", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// A 401 here means the refresh token no longer works server-side.
		_ = c.auth.Logout()
		return nil, output.ErrAuth("Session expired")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, output.ErrAPI(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return respBody, nil
}

// decode unwraps the service envelope into v. A non-success envelope or a
// malformed body is an error; v may be nil to only check success.
func decode(data []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return output.ErrAPI(0, "malformed response body")
	}
	if !env.ok() {
		msg := env.Message
		if msg == "" {
			msg = "request rejected"
		}
		return output.ErrAPI(0, msg)
	}
	if v == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return output.ErrAPI(0, "response missing data")
	}
	return json.Unmarshal(env.Data, v)
}
