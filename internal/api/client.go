// Package api is the HTTP client for the railway complaint backend.
//
// This package implements:
//   - Connection pooling shared by every backend and Telegram call
//   - Cookie-carrying sessions (the backend authenticates through cookies)
//   - Mapping of backend answers onto typed errors
//   - One transparent retry after refreshing an expired access token
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "railmon/internal/errors"
	"railmon/internal/metrics"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// sharedClient is the pooled HTTP client used throughout the application.
//
// Configuration:
//   - Timeout: 30 seconds (configurable via NewHTTPClient)
//   - MaxIdleConns: 100 (total idle connections across all hosts)
//   - MaxIdleConnsPerHost: 10 (idle connections per host)
//   - IdleConnTimeout: 90 seconds
//
// http.Client is safe for concurrent use, so no extra locking is needed.
var sharedClient = NewHTTPClient(30*time.Second, 100)

// GetHTTPClient returns the shared HTTP client instance.
func GetHTTPClient() *http.Client {
	return sharedClient
}

// SetHTTPClient replaces the shared client. main calls it once with the
// configured timeout and pool size.
func SetHTTPClient(client *http.Client) {
	sharedClient = client
}

// NewHTTPClient creates an HTTP client with connection pooling.
//
// Parameters:
//   - timeout: Maximum time for a complete request (including reading response)
//   - maxIdleConns: Total idle connections kept across all hosts
//
// Returns:
//   - *http.Client: Configured HTTP client
func NewHTTPClient(timeout time.Duration, maxIdleConns int) *http.Client {
	if maxIdleConns <= 0 {
		maxIdleConns = 100
	}
	perHost := 10
	if maxIdleConns < perHost {
		perHost = maxIdleConns
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: perHost,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Authenticator supplies the access token for authenticated calls and
// renews it when the backend answers 401.
type Authenticator interface {
	Token() string
	Refresh(ctx context.Context) error
}

// Client talks to the complaint backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	auth    Authenticator
	debug   bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses hc's transport and timeout instead of the shared client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithDebug makes UpdateComplaint log the request instead of sending it.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// New creates a client for the backend at baseURL.
//
// The client copies the pooled http.Client so it can attach its own cookie
// jar while still sharing the transport.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}

	c := &Client{baseURL: u, http: GetHTTPClient()}
	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	hc := *c.http
	hc.Jar = jar
	c.http = &hc
	c.jar = jar

	return c, nil
}

// SetAuthenticator wires the session in. Call it before any authenticated
// request is made.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.auth = a
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one backend call.
type request struct {
	op     string // metric and error label
	method string
	path   string
	body   any
	authed bool   // send the session token and retry once on 401
	bearer string // explicit bearer token, overrides the session's
}

// call sends r and decodes the JSON answer into out. An authenticated call
// that gets 401 refreshes the session once and is replayed.
func (c *Client) call(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return apperrors.NewFetchError(r.op+": encode body", err)
		}
		payload = b
	}

	err := c.send(ctx, r, payload, out)
	if err == nil || !r.authed || c.auth == nil || !apperrors.IsSessionExpired(err) {
		return err
	}

	zap.S().Infof("🔄 %s: access token rejected, refreshing session", r.op)
	if rerr := c.auth.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%s: refresh after 401: %w", r.op, rerr)
	}
	return c.send(ctx, r, payload, out)
}

func (c *Client) send(ctx context.Context, r request, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL.String()+r.path, body)
	if err != nil {
		return apperrors.NewFetchError(r.op+": build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	token := r.bearer
	if token == "" && r.authed && c.auth != nil {
		token = c.auth.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.APIDuration.WithLabelValues(r.op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(r.op, metrics.Code(0)).Inc()
		return apperrors.NewFetchError(r.op, err)
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(r.op, metrics.Code(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.NewFetchError(r.op+": read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		detail := detailOf(data)
		if detail == "" {
			detail = "unauthorized"
		}
		return apperrors.NewSessionExpiredError(detail)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.NewAPIError(r.op, resp.StatusCode, detailOf(data))
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apperrors.NewFetchError(r.op+": decode response", err)
		}
	}
	return nil
}

// detailOf extracts FastAPI's "detail" from an error body. Validation
// errors carry a list of {msg} objects; those are joined.
func detailOf(data []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return strings.TrimSpace(truncate(string(data), 200))
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return envelope.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// setTokenCookies stores tokens in the jar under the backend's cookie names,
// for servers whose Set-Cookie attributes the jar would not accept.
func (c *Client) setTokenCookies(access, refresh string) {
	var cookies []*http.Cookie
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: accessCookie, Value: access, Path: "/"})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: refreshCookie, Value: refresh, Path: "/"})
	}
	if len(cookies) > 0 {
		c.jar.SetCookies(c.baseURL, cookies)
	}
}

// clearCookies expires the token cookies.
func (c *Client) clearCookies() {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{
		{Name: accessCookie, Value: "", Path: "/", MaxAge: -1},
		{Name: refreshCookie, Value: "", Path: "/", MaxAge: -1},
	})
}
