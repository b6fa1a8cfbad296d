package usgs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultMaxBodyBytes is the largest response body accepted before parsing.
const DefaultMaxBodyBytes int64 = 10 << 20

var (
	// ErrResponseTooLarge is returned when the body exceeds the configured ceiling.
	ErrResponseTooLarge = errors.New("response body too large")
	errCircuitOpen      = errors.New("circuit breaker open")
	errNoHTTPClient     = errors.New("http client not configured")
)

// Breaker defaults. The trip threshold sits well above one fetch's worth of
// candidates so a lake without data cannot open the breaker for other lakes.
const (
	defaultTripFailures   = 20
	defaultBreakerTimeout = 15 * time.Second
)

// Transport performs one GET and returns the body and status code, or a
// transport-level failure.
type Transport interface {
	Get(ctx context.Context, rawURL string) ([]byte, int, error)
}

// TransportConfig bundles HTTP client and resilience settings.
type TransportConfig struct {
	Client       *http.Client
	MaxBodyBytes int64
	UserAgent    string
	// Breaker settings applied per endpoint; Name is filled in per host and path.
	Breaker gobreaker.Settings
}

// HTTPTransport is the production Transport. Each endpoint gets its own
// circuit breaker so a dead endpoint fails fast without waiting on timeouts.
type HTTPTransport struct {
	cfg TransportConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPTransport creates an HTTPTransport. A nil client gets a 30s timeout.
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "lake-levels/1.0"
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = defaultBreakerTimeout
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = time.Minute
	}
	if cfg.Breaker.ReadyToTrip == nil {
		cfg.Breaker.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= defaultTripFailures
		}
	}
	if cfg.Breaker.IsSuccessful == nil {
		cfg.Breaker.IsSuccessful = func(err error) bool { return !isConnectivityError(err) }
	}
	return &HTTPTransport{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get executes the request through the endpoint's breaker. Every HTTP status
// is an answer from the upstream and is returned with a nil error; only
// connectivity failures count against the breaker.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if t.cfg.Client == nil {
		return nil, 0, errNoHTTPClient
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing url: %w", err)
	}

	var (
		body   []byte
		status int
	)
	_, err = t.breakerFor(u).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", t.cfg.UserAgent)

		resp, err := t.cfg.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = readLimited(resp.Body, t.cfg.MaxBodyBytes)
		return nil, err
	})

	switch {
	case err == nil:
		return body, status, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, 0, fmt.Errorf("%w: %v", errCircuitOpen, err)
	default:
		return nil, status, err
	}
}

// isConnectivityError reports whether err means the endpoint could not be
// reached. Oversized bodies and caller cancellation say nothing about the
// endpoint's health.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrResponseTooLarge) && !errors.Is(err, context.Canceled)
}

func (t *HTTPTransport) breakerFor(u *url.URL) *gobreaker.CircuitBreaker {
	key := u.Host + u.Path

	t.mu.Lock()
	defer t.mu.Unlock()

	cb, ok := t.breakers[key]
	if !ok {
		settings := t.cfg.Breaker
		settings.Name = key
		cb = gobreaker.NewCircuitBreaker(settings)
		t.breakers[key] = cb
	}
	return cb
}

// readLimited reads at most limit bytes and fails if more are available.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}
	return b, nil
}
