// Package transport performs single HTTP round trips against a crate
// registry. It attaches the mandatory identification headers, enforces the
// request timeout, and consumes one rate limiter admission per call.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pkgwatch/crates-io-client/pkg/ratelimit"
)

// Prometheus metrics for registry requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crates_requests_total",
		Help: "Total registry requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crates_request_duration_seconds",
		Help:    "Registry request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	transportErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crates_transport_errors_total",
		Help: "Total connection, DNS, TLS, and timeout failures",
	})
)

// DefaultBaseURL is the public crates.io API root.
const DefaultBaseURL = "https://crates.io/api/v1/"

// DefaultTimeout bounds a single round trip including body read.
const DefaultTimeout = 30 * time.Second

// Descriptor identifies one logical registry request. Path is relative to
// the configured base URL and must already be percent-encoded; Query values
// are encoded by the transport.
type Descriptor struct {
	Method string // defaults to GET
	Path   string
	Query  url.Values
}

// RawResponse is the undecoded result of a round trip. It is consumed by the
// response decoder and discarded; the transport never retains it.
type RawResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

// Error wraps a network-level failure (connection, DNS, TLS, timeout).
// These bypass response decoding entirely and are never retried here.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds the transport configuration.
type Config struct {
	// BaseURL of the registry API root. Defaults to crates.io.
	BaseURL string

	// UserAgent identifies the client to the registry (REQUIRED).
	// crates.io rejects or penalizes anonymous crawlers.
	// Format: "my_bot (my_bot.com/info)" or "my_bot (help@my_bot.com)".
	UserAgent string

	// Token is sent as the Authorization header when set. Alternative
	// registries may require it; crates.io reads are anonymous.
	Token string

	// Timeout per round trip. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests. When set,
	// Timeout is ignored in favor of the override's own settings.
	HTTPClient *http.Client
}

// Client executes registry round trips. It performs exactly one HTTP request
// per Send call; retry policy belongs to the caller, since a blind retry
// would violate the crawler rate-limit contract.
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
	token     string
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
}

// New creates a transport client. The limiter is shared with the owning
// dispatcher; every Send consumes one admission.
func New(cfg Config, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		http:      httpClient,
		base:      base,
		userAgent: cfg.UserAgent,
		token:     cfg.Token,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// BaseURL returns a copy of the resolved registry root.
func (c *Client) BaseURL() url.URL {
	return *c.base
}

// Send executes one request/response cycle for the descriptor. It blocks on
// rate limiter admission before the network call and releases the admission
// when the call completes, on success and failure alike.
func (c *Client) Send(ctx context.Context, d Descriptor) (*RawResponse, error) {
	u, err := c.resolve(d)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Admit(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(d.Path).Observe(time.Since(start).Seconds())
	}()

	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, &Error{URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", u.String()).
		Msg("Executing registry request")

	resp, err := c.http.Do(req)
	if err != nil {
		transportErrorsTotal.Inc()
		requestsTotal.WithLabelValues(d.Path, "network_error").Inc()
		c.logger.Error().
			Err(err).
			Str("url", u.String()).
			Msg("Registry request failed")
		return nil, &Error{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		transportErrorsTotal.Inc()
		requestsTotal.WithLabelValues(d.Path, "read_error").Inc()
		return nil, &Error{URL: u.String(), Err: fmt.Errorf("read response body: %w", err)}
	}

	requestsTotal.WithLabelValues(d.Path, strconv.Itoa(resp.StatusCode)).Inc()

	return &RawResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         u.String(),
	}, nil
}

// resolve joins the descriptor path and query onto the base URL.
func (c *Client) resolve(d Descriptor) (*url.URL, error) {
	ref, err := url.Parse(d.Path)
	if err != nil {
		return nil, fmt.Errorf("parse request path %q: %w", d.Path, err)
	}
	u := c.base.ResolveReference(ref)
	if len(d.Query) > 0 {
		u.RawQuery = d.Query.Encode()
	}
	return u, nil
}
