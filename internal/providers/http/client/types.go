package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Client wraps resty with rate limiting and circuit breaker protection.
// Requests are issued exactly once; retries are the caller's decision.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex
}

// Options configures a Client
type Options struct {
	Name      string
	Timeout   time.Duration
	UserAgent string
	// RateLimit is requests per second; zero or less means unlimited
	RateLimit float64
	// IsSuccessful lets callers keep expected errors from tripping the breaker
	IsSuccessful func(err error) bool
	// OnStateChange observes breaker transitions
	OnStateChange func(name string, from, to resilience.State)
}

// DefaultOptions returns options for a single-shot outbound client
func DefaultOptions() Options {
	return Options{
		Name:      "http-external",
		Timeout:   10 * time.Second,
		UserAgent: "bubblegate/1.0",
	}
}

// NewClient creates an HTTP client with a circuit breaker and no automatic retries
func NewClient(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "http-external"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	// Only the pooled transport is borrowed; retry is disabled at both layers
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetTransport(retryClient.HTTPClient.Transport)
	restyClient.JSONMarshal = sonic.Marshal
	restyClient.JSONUnmarshal = sonic.Unmarshal
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}

	breaker := resilience.New(opts.Name, resilience.Settings{
		MaxRequests:   1,
		Interval:      60 * time.Second,
		Timeout:       30 * time.Second,
		IsSuccessful:  opts.IsSuccessful,
		OnStateChange: opts.OnStateChange,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	c := &Client{
		Resty:   restyClient,
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Breaker: breaker,
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// SetHeader adds default header
func (c *Client) SetHeader(key, value string) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// SetTimeout configures request timeout
func (c *Client) SetTimeout(duration time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetTimeout(duration)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Request creates a new request after the breaker and rate limiter admit it
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}
	return c.Attempt(ctx)
}

// Attempt creates a new request that only the rate limiter can hold back.
// Callers that send it directly, without Execute, bypass the breaker entirely.
func (c *Client) Attempt(ctx context.Context) (*resty.Request, error) {
	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Execute runs an HTTP operation through the circuit breaker
func (c *Client) Execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	return resilience.Execute(c.Breaker, fn)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.Breaker.Counts()
}
