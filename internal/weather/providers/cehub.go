package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-tables/internal/common"
	"github.com/i474232898/weather-tables/internal/weather"
)

// DefaultStationURL is the CE Hub historic station-data endpoint.
const DefaultStationURL = "https://t2xer83e5a.execute-api.eu-central-1.amazonaws.com/cehub-prod/stationdata/v2/historic"

const userAgent = "weather-tables/1.0"

// CEHubConfig configures a CEHubStationClient.
type CEHubConfig struct {
	URL            string
	APIKey         string
	Timeout        time.Duration
	BreakerEnabled bool
	Logger         *slog.Logger
}

// CEHubStationClient queries the CE Hub station API. Each call is exactly one
// HTTP request; there is no retry.
type CEHubStationClient struct {
	client   *resty.Client
	url      string
	apiKey   string
	validate *validator.Validate
	circuit  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewCEHubStationClient creates a client for the given endpoint.
func NewCEHubStationClient(cfg CEHubConfig) *CEHubStationClient {
	if cfg.URL == "" {
		cfg.URL = DefaultStationURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	c := &CEHubStationClient{
		client:   client,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   cfg.Logger,
	}
	if cfg.BreakerEnabled {
		c.circuit = newBreaker("cehub-stations")
	}
	return c
}

// FetchStationData posts q to the station endpoint and decodes the nested
// response. An empty answer for the period is reported as weather.ErrNoData;
// an error object in place of the data array as an UpstreamError.
func (c *CEHubStationClient) FetchStationData(ctx context.Context, q weather.StationQuery) (weather.StationResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: cehub station api key is not configured", weather.ErrConfiguration)
	}
	if err := c.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidQuery, err)
	}

	c.logger.Debug("querying station data",
		"stations", q.Stations,
		"from", q.DateFrom.Format(time.DateOnly),
		"to", q.DateTo.Format(time.DateOnly),
		"variables", q.Variables,
	)

	resp, err := execute(c.circuit, func() (*resty.Response, error) {
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("x-api-key", c.apiKey).
			SetBody(q).
			Post(c.url)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errTransport, err)
		}
		if !resp.IsSuccess() {
			return nil, statusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		c.logger.Warn("station query failed", "error", err)
		return nil, err
	}

	return decodeStationResponse(resp.Body())
}

// decodeStationResponse separates the three shapes the endpoint answers
// with: a data array, an empty array, or an error object.
func decodeStationResponse(body []byte) (weather.StationResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, weather.ErrNoData
	}

	if trimmed[0] == '{' {
		msg := payloadMessage(trimmed)
		if common.HasAny(strings.ToLower(msg), "no data", "not available", "no records") {
			return nil, fmt.Errorf("%w: %s", weather.ErrNoData, msg)
		}
		if msg == "" {
			msg = "unexpected object in place of station data"
		}
		return nil, &weather.UpstreamError{Message: msg}
	}

	var out weather.StationResponse
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: decode station response: %v", weather.ErrUpstreamData, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if out.SeriesCount() == 0 {
		return nil, weather.ErrNoData
	}
	return out, nil
}
