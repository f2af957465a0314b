package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-tables/internal/weather"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")

	// errTransport marks failures that count against the breaker.
	errTransport = errors.New("transport failure")
)

const maxMessageLen = 200

// newBreaker returns a breaker that opens after consecutive upstream
// failures. It never retries; it only stops calling a failing service.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Data-level errors are answers, not outages.
			return err == nil || !errors.Is(err, errTransport)
		},
	})
}

// execute runs fn once, through cb when it is set.
func execute(cb *gobreaker.CircuitBreaker, fn func() (*resty.Response, error)) (*resty.Response, error) {
	if cb == nil {
		return fn()
	}
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w: %v", weather.ErrUpstreamData, errCircuitOpen, err)
	}
	resp, _ := result.(*resty.Response)
	return resp, err
}

// statusError maps a non-2xx response to an UpstreamError. Rate limits and
// server errors also count as transport failures for the breaker.
func statusError(resp *resty.Response) error {
	code := resp.StatusCode()
	msg := payloadMessage(resp.Body())
	if msg == "" {
		msg = http.StatusText(code)
	}
	upstream := &weather.UpstreamError{StatusCode: code, Message: msg}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: %w", errTransport, errRateLimited, upstream)
	case code >= 500:
		return fmt.Errorf("%w: %w: %w", errTransport, errServerError, upstream)
	default:
		return fmt.Errorf("%w: %w", errUnexpected, upstream)
	}
}

// payloadMessage extracts a human readable message from an error body.
func payloadMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxMessageLen {
			msg = msg[:maxMessageLen]
		}
		return msg
	}
	for _, key := range []string{"message", "Message", "error", "errorMessage", "detail"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
