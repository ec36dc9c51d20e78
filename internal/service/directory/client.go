package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
)

const (
	defaultBaseURL = "https://reqres.in"
	defaultAPIKey  = "reqres-free-v1"
	usersPath      = "/api/users"
	userAgent      = "hive-profiles"
	perPage        = 100
	// maxPages bounds the walk if the upstream keeps reporting more pages.
	maxPages = 50
)

// Client implements Service against a reqres-compatible users endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// WithAPIKey sets the x-api-key header. An empty key omits the header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new directory client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		apiKey:     defaultAPIKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reqresUser struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type reqresPage struct {
	Page       int          `json:"page"`
	Total      int          `json:"total"`
	TotalPages int          `json:"total_pages"`
	Data       []reqresUser `json:"data"`
}

// ListUsers walks every page the directory reports and returns the users in order.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	totalPages := 1
	for page := 1; page <= totalPages && page <= maxPages; page++ {
		body, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if body.TotalPages > 0 {
			totalPages = body.TotalPages
		}
		for _, u := range body.Data {
			users = append(users, toUser(u))
		}
		if len(body.Data) == 0 {
			break
		}
	}
	applog.LogDebug(ctx, "directory users fetched", zap.Int("count", len(users)), zap.Int("pages", totalPages))
	return users, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (*reqresPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+usersPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: UpstreamErrorKindTransport, Page: page, cause: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &UpstreamError{Kind: UpstreamErrorKindRateLimited, Status: resp.StatusCode, Page: page, cause: ErrRateLimited}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &UpstreamError{Kind: UpstreamErrorKindForbidden, Status: resp.StatusCode, Page: page, cause: ErrForbidden}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &UpstreamError{Kind: UpstreamErrorKindUpstream, Status: resp.StatusCode, Page: page, cause: ErrUpstream}
	}

	var body reqresPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &UpstreamError{
			Kind:   UpstreamErrorKindDecode,
			Status: resp.StatusCode,
			Page:   page,
			cause:  fmt.Errorf("decoding directory page: %w", err),
		}
	}
	return &body, nil
}

func toUser(u reqresUser) User {
	phone := strings.TrimSpace(u.Phone)
	if phone == "" {
		phone = "-"
	}
	return User{
		Name:  strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email: u.Email,
		Phone: phone,
	}
}
