package deliverability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
)

const (
	defaultBaseURL = "https://api.zerobounce.net"
	validatePath   = "/v2/validate"
	userAgent      = "hive-profiles"
	statusValid    = "valid"
)

// Client implements Service against a ZeroBounce-compatible validate endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIKey sets the key sent as the api_key query parameter.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout bounds each lookup. Zero leaves timing to the transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a deliverability client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{httpClient: httpClient, baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type validateResponse struct {
	Address   string `json:"address"`
	Status    string `json:"status"`
	SubStatus string `json:"sub_status"`
	Error     string `json:"error"`
}

// Check issues exactly one validate request.
func (c *Client) Check(ctx context.Context, email string) (Verdict, error) {
	if c.apiKey == "" {
		return CheckFailed, ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("email", email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+validatePath+"?"+q.Encode(), nil)
	if err != nil {
		return CheckFailed, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CheckFailed, &UpstreamError{Kind: UpstreamErrorKindTransport, cause: redactKey(err, c.apiKey)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		applog.LogWarn(ctx, "deliverability rate limited", zap.String("Retry-After", resp.Header.Get("Retry-After")))
		return CheckFailed, &UpstreamError{Kind: UpstreamErrorKindRateLimited, Status: resp.StatusCode, cause: ErrRateLimited}
	case resp.StatusCode != http.StatusOK:
		return CheckFailed, &UpstreamError{Kind: UpstreamErrorKindStatus, Status: resp.StatusCode, cause: ErrUpstream}
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CheckFailed, &UpstreamError{
			Kind:   UpstreamErrorKindDecode,
			Status: resp.StatusCode,
			cause:  fmt.Errorf("decoding deliverability response: %w", err),
		}
	}
	// ZeroBounce reports bad keys and exhausted credits as 200 with an error field.
	if body.Error != "" {
		return CheckFailed, &UpstreamError{
			Kind:   UpstreamErrorKindRejected,
			Status: resp.StatusCode,
			cause:  fmt.Errorf("%w: %s", ErrRejected, body.Error),
		}
	}

	if strings.EqualFold(body.Status, statusValid) {
		return Deliverable, nil
	}
	applog.LogDebug(ctx, "email reported undeliverable",
		zap.String("status", body.Status), zap.String("sub_status", body.SubStatus))
	return Undeliverable, nil
}

// redactKey keeps the API key out of *url.Error messages, which embed the request URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
