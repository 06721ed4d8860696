package registry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions configures the shared registry HTTP client.
type ClientOptions struct {
	UserAgent    string
	Timeout      time.Duration
	RateLimiters map[string]*rate.Limiter
}

// Client is the HTTP client shared by registry adapters. It applies per-host
// outbound rate limiting and a bounded timeout. It deliberately performs no
// retries: adapters surface upstream failures unchanged.
type Client struct {
	client    *http.Client
	limiters  map[string]*rate.Limiter
	fallback  *rate.Limiter
	userAgent string
}

// DefaultRateLimiters returns the default per-host rate limiters for the
// known registry hosts.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"npiregistry.cms.hhs.gov": rate.NewLimiter(5, 5),
		"hpr.abdm.gov.in":         rate.NewLimiter(5, 5),
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "provider-verify/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for host, lim := range opts.RateLimiters {
		limiters[host] = lim
	}
	return &Client{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiters:  limiters,
		fallback:  rate.NewLimiter(20, 20),
		userAgent: opts.UserAgent,
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.fallback
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.fallback
}

// Get fetches the URL and returns the response body and status code.
// Transport-level failures return a wrapped error; non-2xx statuses are the
// caller's to interpret, since the registries disagree on their meaning
// (e.g. HPR treats 404 as an empty result).
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, int, error) {
	if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "registry: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "registry: build request")
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "registry: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "registry: read body")
	}

	if resp.StatusCode != http.StatusOK {
		zap.L().Debug("registry: non-200 upstream response",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
	}

	return body, resp.StatusCode, nil
}
