package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/pincode-weather-service/internal/observability"
)

// BreakerConfig configures the optional circuit breaker placed in front of each endpoint.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	HalfOpenRequests int
	Timeout          time.Duration
}

// endpoint issues single GET requests against one remote URL. A 5xx response or transport
// failure is an ErrUpstreamUnavailable error and counts against the breaker; 4xx responses are
// returned to the caller for interpretation.
type endpoint struct {
	name    string
	url     string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type response struct {
	status int
	body   []byte
}

func newEndpoint(name, rawURL string, timeout time.Duration, bc BreakerConfig) (*endpoint, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("%s URL %q: %w", name, rawURL, err)
	}
	e := &endpoint{
		name:    name,
		url:     rawURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
	if bc.Enabled {
		e.breaker = newBreaker(name, bc)
		observability.CircuitBreakerState.WithLabelValues(name).Set(0)
	}
	return e, nil
}

func newBreaker(name string, bc BreakerConfig) *gobreaker.CircuitBreaker {
	threshold := uint32(bc.FailureThreshold)
	if threshold == 0 {
		threshold = 5
	}
	halfOpen := uint32(bc.HalfOpenRequests)
	if halfOpen == 0 {
		halfOpen = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (e *endpoint) get(ctx context.Context, params url.Values) (response, error) {
	if e.breaker == nil {
		return e.call(ctx, params)
	}
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.call(ctx, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.RemoteAPICallsTotal.WithLabelValues(e.name, "circuit_open").Inc()
			return response{}, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, e.name, err)
		}
		return response{}, err
	}
	return out.(response), nil
}

func (e *endpoint) call(ctx context.Context, params url.Values) (response, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := e.buildRequest(reqCtx, params)
	if err != nil {
		observability.RemoteAPICallsTotal.WithLabelValues(e.name, "error").Inc()
		return response{}, fmt.Errorf("build %s request: %w", e.name, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		observability.RemoteAPICallsTotal.WithLabelValues(e.name, "error").Inc()
		observability.RemoteAPIDuration.WithLabelValues(e.name, "error").Observe(time.Since(start).Seconds())
		return response{}, fmt.Errorf("%w: %s request failed: %v", ErrUpstreamUnavailable, e.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	status := statusLabel(resp.StatusCode)
	observability.RemoteAPICallsTotal.WithLabelValues(e.name, status).Inc()
	observability.RemoteAPIDuration.WithLabelValues(e.name, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return response{}, fmt.Errorf("%w: read %s response: %v", ErrUpstreamUnavailable, e.name, err)
	}
	if resp.StatusCode >= 500 {
		return response{}, fmt.Errorf("%w: %s HTTP %d", ErrUpstreamUnavailable, e.name, resp.StatusCode)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

func (e *endpoint) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	u, err := url.Parse(e.url)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

// isEmptyBody reports whether a 2xx body carries no document at all.
func isEmptyBody(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
