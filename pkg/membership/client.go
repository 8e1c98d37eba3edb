// Package membership provides a client for the cycling federation's
// membership lookup API.
package membership

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Client defines the membership registry operations.
type Client interface {
	// Members returns every registered member, following pagination.
	Members(ctx context.Context) ([]Member, error)
}

// Member is one registry entry. Levels are skill categories 1 (highest) to
// 5 (entry); zero means no level for that discipline.
type Member struct {
	UciID           string   `json:"uci_id" validate:"omitempty,numeric"`
	FirstName       string   `json:"first_name" validate:"required"`
	LastName        string   `json:"last_name" validate:"required"`
	Gender          string   `json:"gender,omitempty" validate:"omitempty,oneof=M F X"`
	BirthYear       int      `json:"birth_year,omitempty"`
	City            string   `json:"city,omitempty"`
	Province        string   `json:"province,omitempty"`
	Club            string   `json:"club,omitempty"`
	Licenses        []string `json:"licenses,omitempty"`
	RoadLevel       int      `json:"road_level,omitempty" validate:"gte=0,lte=5"`
	CXLevel         int      `json:"cx_level,omitempty" validate:"gte=0,lte=5"`
	RoadAgeCategory string   `json:"road_age_category,omitempty"`
	CXAgeCategory   string   `json:"cx_age_category,omitempty"`
}

// Page is one page of the members listing.
type Page struct {
	Data     []Member `json:"data" validate:"dive"`
	NextPage int      `json:"next_page,omitempty"`
}

// Option configures the membership client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithBackoff sets the initial delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		c.backoff = d
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	backoff  time.Duration
	validate *validator.Validate
}

// NewClient creates a new membership API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://membership.cyclingbc.ca/api/v1",
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff:  time.Second,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes req with exponential backoff on transient failures.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.http.Do(req.Clone(ctx))
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, resp.StatusCode, eris.Wrap(readErr, "membership: read response body")
			}
			if !retryableStatusCode(resp.StatusCode) || attempt == maxAttempts {
				return body, resp.StatusCode, nil
			}
			lastErr = eris.Errorf("membership: status %d: %s", resp.StatusCode, string(body))
		} else {
			lastErr = err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, 0, lastErr
}

func (c *httpClient) Members(ctx context.Context) ([]Member, error) {
	var members []Member
	page := 1
	for {
		p, err := c.page(ctx, page)
		if err != nil {
			return nil, err
		}
		members = append(members, p.Data...)
		if p.NextPage <= page {
			return members, nil
		}
		page = p.NextPage
	}
}

func (c *httpClient) page(ctx context.Context, page int) (*Page, error) {
	reqURL := c.baseURL + "/members?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "membership: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "membership: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("membership: unexpected status %d: %s", statusCode, string(body))
	}

	var result Page
	if err := sonic.ConfigStd.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrapf(err, "membership: unmarshal page %d", page)
	}
	if err := c.validate.Struct(result); err != nil {
		return nil, eris.Wrapf(err, "membership: invalid page %d", page)
	}
	return &result, nil
}
