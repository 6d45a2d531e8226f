// Package weather looks up match-time conditions from an external weather
// API. Missing data is reported as absence, never as an error, so callers can
// degrade gracefully.
package weather

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quarterline/sportscrape/internal/schema"
)

// Config controls the weather client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements extract.WeatherService over HTTP.
type Client struct {
	http *resty.Client
}

type conditionsResponse struct {
	TemperatureC  float64 `json:"temperature_c"`
	Humidity      float64 `json:"humidity"`
	WindSpeedKmh  float64 `json:"wind_speed_kmh"`
	Precipitation float64 `json:"precipitation_mm"`
	Conditions    string  `json:"conditions"`
}

// NewClient builds a weather client for the given endpoint.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if cfg.APIKey != "" {
		httpClient.SetQueryParam("key", cfg.APIKey)
	}
	return &Client{http: httpClient}
}

// Lookup returns conditions at the venue for the given time. The second
// result is false when the service has no data for the venue.
func (c *Client) Lookup(ctx context.Context, venue string, at time.Time) (schema.WeatherInfo, bool, error) {
	if venue == "" {
		return schema.WeatherInfo{}, false, nil
	}

	var body conditionsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"venue": venue,
			"at":    at.UTC().Format(time.RFC3339),
		}).
		SetResult(&body).
		Get("/v1/conditions")
	if err != nil {
		return schema.WeatherInfo{}, false, fmt.Errorf("weather lookup %q: %w", venue, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return schema.WeatherInfo{}, false, nil
	}
	if resp.IsError() {
		return schema.WeatherInfo{}, false, fmt.Errorf("weather lookup %q: status %d", venue, resp.StatusCode())
	}
	if body == (conditionsResponse{}) {
		return schema.WeatherInfo{}, false, nil
	}

	return schema.WeatherInfo{
		TemperatureC:  body.TemperatureC,
		Humidity:      body.Humidity,
		WindSpeedKmh:  body.WindSpeedKmh,
		Precipitation: body.Precipitation,
		Conditions:    body.Conditions,
	}, true, nil
}
