package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/openmeteo"
)

const hourlySeries = "temperature_2m,relative_humidity_2m,wind_speed_10m"

// WeatherAPI fetches raw Open-Meteo payloads. Translation into observations is the caller's job.
type WeatherAPI interface {
	FetchCurrent(ctx context.Context, lat, lon float64) ([]byte, error)
	FetchHistorical(ctx context.Context, lat, lon float64, date time.Time) ([]byte, error)
}

// OpenMeteoClient talks to the Open-Meteo forecast (live) and archive (historical) endpoints.
type OpenMeteoClient struct {
	current    *endpoint
	historical *endpoint
	now        func() time.Time
}

// NewOpenMeteoClient returns a client for the given live and archive URLs.
func NewOpenMeteoClient(currentURL, historicalURL string, timeout time.Duration, bc BreakerConfig) (*OpenMeteoClient, error) {
	cur, err := newEndpoint("current", currentURL, timeout, bc)
	if err != nil {
		return nil, err
	}
	hist, err := newEndpoint("historical", historicalURL, timeout, bc)
	if err != nil {
		return nil, err
	}
	return &OpenMeteoClient{current: cur, historical: hist, now: time.Now}, nil
}

// FetchCurrent returns today's forecast payload with current and hourly sections.
// A 4xx response becomes ErrRemoteWeatherFailed carrying the raw response body.
func (c *OpenMeteoClient) FetchCurrent(ctx context.Context, lat, lon float64) ([]byte, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", "temperature_2m,wind_speed_10m")
	params.Set("hourly", hourlySeries)
	params.Set("forecast_days", "1")

	resp, err := c.current.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, remoteError(ErrRemoteWeatherFailed, strings.TrimSpace(string(resp.body)))
	}
	if isEmptyBody(resp.body) {
		today := models.DateOf(c.now()).Format(models.DateLayout)
		return nil, remoteError(ErrEmptyRemoteResponse,
			fmt.Sprintf("No response received for \"lat:%s, lon:%s, date:%s\"", formatCoord(lat), formatCoord(lon), today))
	}
	return resp.body, nil
}

// FetchHistorical returns the archive payload for a single-day window. A 4xx response becomes
// ErrRemoteWeatherFailed carrying the provider's "reason".
func (c *OpenMeteoClient) FetchHistorical(ctx context.Context, lat, lon float64, date time.Time) ([]byte, error) {
	day := date.Format(models.DateLayout)
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("start_date", day)
	params.Set("end_date", day)
	params.Set("hourly", hourlySeries)

	resp, err := c.historical.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		var eb openmeteo.ErrorBody
		msg := strings.TrimSpace(string(resp.body))
		if err := json.Unmarshal(resp.body, &eb); err == nil && eb.Reason != "" {
			msg = eb.Reason
		}
		return nil, remoteError(ErrRemoteWeatherFailed, msg)
	}
	if isEmptyBody(resp.body) {
		return nil, remoteError(ErrEmptyRemoteResponse,
			fmt.Sprintf("No response received for lat: %s lon: %s date: %s", formatCoord(lat), formatCoord(lon), day))
	}
	return resp.body, nil
}
