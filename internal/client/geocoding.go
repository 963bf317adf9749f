package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
)

// Geocoder resolves a postal code to coordinates.
type Geocoder interface {
	LookupPostalCode(ctx context.Context, postalCode string) (models.Location, error)
}

// GeocodingClient calls the OpenWeather zip geocoding endpoint for a fixed country.
type GeocodingClient struct {
	apiKey   string
	country  string
	endpoint *endpoint
}

// NewGeocodingClient validates the key and URL and returns a client for country (e.g. "IN").
func NewGeocodingClient(apiKey, apiURL, country string, timeout time.Duration, bc BreakerConfig) (*GeocodingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidCredentials)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidCredentials)
	}
	if strings.TrimSpace(country) == "" {
		return nil, fmt.Errorf("geocoding country is required")
	}
	ep, err := newEndpoint("geocoding", apiURL, timeout, bc)
	if err != nil {
		return nil, err
	}
	return &GeocodingClient{apiKey: apiKey, country: strings.TrimSpace(country), endpoint: ep}, nil
}

// geocodeResponse accepts coordinates as numbers or numeric strings.
type geocodeResponse struct {
	Zip     string      `json:"zip"`
	Name    string      `json:"name"`
	Lat     json.Number `json:"lat"`
	Lon     json.Number `json:"lon"`
	Country string      `json:"country"`
}

type geocodeError struct {
	Cod     json.Number `json:"cod"`
	Message string      `json:"message"`
}

// LookupPostalCode returns the location for postalCode. The returned PostalCode is the
// requested code, so store and cache lookups stay keyed on what callers ask for.
func (c *GeocodingClient) LookupPostalCode(ctx context.Context, postalCode string) (models.Location, error) {
	params := url.Values{}
	params.Set("zip", postalCode+","+c.country)
	params.Set("appid", c.apiKey)

	resp, err := c.endpoint.get(ctx, params)
	if err != nil {
		return models.Location{}, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return models.Location{}, c.classifyError(postalCode, resp)
	}
	if isEmptyBody(resp.body) {
		return models.Location{}, remoteError(ErrEmptyRemoteResponse, "No response received for pincode: "+postalCode)
	}

	var gr geocodeResponse
	if err := json.Unmarshal(resp.body, &gr); err != nil {
		return models.Location{}, remoteError(ErrRemoteResolutionFailed, fmt.Sprintf("parse geocoding response for pincode %s: %v", postalCode, err))
	}
	lat, err := gr.Lat.Float64()
	if err != nil {
		return models.Location{}, remoteError(ErrRemoteResolutionFailed, fmt.Sprintf("geocoding response for pincode %s has invalid lat %q", postalCode, gr.Lat.String()))
	}
	lon, err := gr.Lon.Float64()
	if err != nil {
		return models.Location{}, remoteError(ErrRemoteResolutionFailed, fmt.Sprintf("geocoding response for pincode %s has invalid lon %q", postalCode, gr.Lon.String()))
	}
	return models.Location{
		PostalCode:  postalCode,
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: gr.Name,
		Country:     gr.Country,
	}, nil
}

// classifyError maps a 4xx geocoding response to a failure kind. The structured "cod" field
// wins over the HTTP status when present.
func (c *GeocodingClient) classifyError(postalCode string, resp response) error {
	var ge geocodeError
	code := resp.status
	msg := strings.TrimSpace(string(resp.body))
	if err := json.Unmarshal(resp.body, &ge); err == nil {
		if n, err := ge.Cod.Int64(); err == nil {
			code = int(n)
		}
		msg = ge.Message
	}
	switch code {
	case http.StatusNotFound:
		return remoteError(ErrLocationNotFound, "Pincode: "+postalCode+" "+msg)
	case http.StatusUnauthorized:
		return remoteError(ErrInvalidCredentials, "Invalid API key")
	default:
		if msg == "" {
			msg = fmt.Sprintf("geocoding failed with HTTP %d", resp.status)
		}
		return remoteError(ErrRemoteResolutionFailed, msg)
	}
}
