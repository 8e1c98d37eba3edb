package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/velodata/race-pipeline/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// PerHostRate is the request rate allowed per host. Default 2/s.
	PerHostRate rate.Limit
	// RetryDelay is the initial backoff between attempts. Default 500ms.
	RetryDelay time.Duration
	// Breaker stops calling a host after repeated transient failures.
	Breaker resilience.BreakerConfig
}

// HTTPFetcher implements Fetcher with per-host rate limiting and retry of
// transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	breakers *resilience.Breakers

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "race-pipeline/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 2
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		breakers: resilience.NewBreakers(opts.Breaker),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.PerHostRate, 1)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads rawURL. 408, 429 and 5xx responses are retried with
// backoff; a host that keeps failing is skipped for the breaker's cooldown.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	lim := f.limiterFor(u.Host)

	policy := resilience.Policy{
		Attempts:  f.opts.MaxRetries,
		Initial:   f.opts.RetryDelay,
		Max:       30 * time.Second,
		Jitter:    0.25,
		Operation: "fetch " + u.Host,
	}
	body, err := resilience.Guard(ctx, f.breakers.For(u.Host), func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate limiter wait")
			}
			return f.get(ctx, rawURL)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: fetch %s", rawURL)
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "fetcher: do request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	return body, nil
}
