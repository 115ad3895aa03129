package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable means the breaker is open and the backend is not being called.
	ErrUnavailable = errors.New("monitor backend unavailable")
	// ErrTooLarge means a response exceeded the configured size limit.
	ErrTooLarge = errors.New("response too large")
)

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d", e.Path, e.Code)
}

// Config configures the backend client
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	InsecureTLS bool
	// RPS <= 0 disables client-side rate limiting
	RPS          float64
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// MaxBodyBytes bounds every response body
	MaxBodyBytes int64
	// MaxScreens caps screenCount in listed monitors
	MaxScreens int
	UserAgent  string
	// Breaker settings apply to each endpoint's breaker
	Breaker resilience.Settings
}

// DefaultConfig returns client defaults for a backend at baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      10 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: time.Second,
		MaxBodyBytes: 32 << 20,
		MaxScreens:   types.DefaultMaxScreens,
		UserAgent:    "monview/1.0",
		Breaker:      resilience.DefaultSettings(),
	}
}

// registryBreaker guards /monitors. Image endpoints get one breaker per
// address and screen so a failing screen cannot starve the others.
const registryBreaker = "monitors"

// maxBreakers bounds the per-endpoint breaker table.
const maxBreakers = 1024

// Client talks to the monitor backend with retries, rate limiting and
// per-endpoint circuit breakers.
type Client struct {
	resty      *resty.Client
	limiter    *rate.Limiter
	settings   resilience.Settings
	maxBody    int64
	maxScreens int
	log        *zap.Logger

	breakerMu sync.Mutex
	breakers  map[string]*resilience.Breaker // Protected by breakerMu

	mu      sync.RWMutex
	metrics *monitoring.Metrics
}

// New creates a backend client
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	defaults := DefaultConfig(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaults.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = defaults.RetryWaitMax
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	c := &Client{
		maxBody:    cfg.MaxBodyBytes,
		maxScreens: cfg.MaxScreens,
		log:        log.Named("backend"),
		breakers:   make(map[string]*resilience.Breaker),
	}

	// Retries happen in the transport; resty's own retry stays off.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = &leveledLogger{s: c.log.Sugar()}
	if transport, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok && cfg.InsecureTLS {
		// Backends commonly run with self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c.resty = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	settings := cfg.Breaker
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = backendHealthy
	}
	onChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to resilience.State) {
		c.log.Warn("Backend circuit breaker state change",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if to == resilience.StateOpen {
			c.getMetrics().IncBreakerTrips()
		}
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	c.settings = settings
	c.breaker(registryBreaker)

	return c
}

// WithMetrics adds metrics tracking to the client
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.mu.Lock()
	c.metrics = metrics
	c.mu.Unlock()
	return c
}

func (c *Client) getMetrics() *monitoring.Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// BreakerState returns the state of the monitor list breaker
func (c *Client) BreakerState() resilience.State {
	return c.breaker(registryBreaker).State()
}

// BreakerStates returns the state of every endpoint breaker by name
func (c *Client) BreakerStates() map[string]resilience.State {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	out := make(map[string]resilience.State, len(c.breakers))
	for name, b := range c.breakers {
		out[name] = b.State()
	}
	return out
}

// breaker returns the breaker for name, creating it on first use. When the
// table is full, closed image breakers are dropped first.
func (c *Client) breaker(name string) *resilience.Breaker {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	if b, ok := c.breakers[name]; ok {
		return b
	}
	if len(c.breakers) >= maxBreakers {
		for key, b := range c.breakers {
			if key != registryBreaker && b.State() == resilience.StateClosed {
				delete(c.breakers, key)
			}
		}
	}
	b := resilience.New(name, c.settings)
	c.breakers[name] = b
	return b
}

// get issues a GET for path with a raw query through the named breaker and
// returns the bounded body.
func (c *Client) get(ctx context.Context, operation, breaker, path, rawQuery string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	timer := monitoring.NewTimer(c.getMetrics(), operation)
	defer timer.Stop()

	body, err := resilience.Do(ctx, c.breaker(breaker), func(ctx context.Context) ([]byte, error) {
		req := c.resty.R().
			SetContext(ctx).
			SetDoNotParseResponse(true)
		url := path
		if rawQuery != "" {
			url += "?" + rawQuery
		}

		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		raw := resp.RawBody()
		defer raw.Close()

		if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
			_, _ = io.Copy(io.Discard, io.LimitReader(raw, 4096))
			return nil, &StatusError{Path: path, Code: resp.StatusCode()}
		}

		data, err := io.ReadAll(io.LimitReader(raw, c.maxBody+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > c.maxBody {
			return nil, fmt.Errorf("%s: %w (limit %d bytes)", path, ErrTooLarge, c.maxBody)
		}
		return data, nil
	})

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnavailable)
	}
	return body, err
}

// backendHealthy treats client errors as proof the backend is up.
func backendHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var status *StatusError
	return errors.As(err, &status) && status.Code < http.StatusInternalServerError
}
