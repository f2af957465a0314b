package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamData is returned when the weather service answers with a
	// payload that cannot be turned into a table.
	ErrUpstreamData = errors.New("upstream data error")

	// ErrNoData is returned when the service has no samples for the requested period.
	ErrNoData = fmt.Errorf("%w: no data for requested period", ErrUpstreamData)

	ErrParse         = errors.New("parse error")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrStorage       = errors.New("storage error")
	ErrInvalidQuery  = errors.New("invalid query")

	// ErrConfiguration is returned when a required setting is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedIdentifier is only produced when strict identifier
	// validation is requested.
	ErrMalformedIdentifier = fmt.Errorf("%w: malformed station identifier", ErrParse)

	ErrUnmappedCode        = errors.New("unmapped variable code")
	ErrUnmappedAggregation = errors.New("unmapped aggregation")
)

// UpstreamError describes a failed exchange with the weather service.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("weather service error: %s", e.Message)
	}
	return fmt.Sprintf("weather service error (status %d): %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamData
}

// Kind returns a short label for err, used for metrics and HTTP mapping.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUpstreamData):
		return "upstream"
	case errors.Is(err, ErrMalformedIdentifier):
		return "identifier"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrShapeMismatch):
		return "shape"
	case errors.Is(err, ErrUnmappedCode), errors.Is(err, ErrUnmappedAggregation):
		return "unmapped"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
