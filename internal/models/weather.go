package models

import "time"

// DateLayout is the calendar-date layout used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// Location is a geocoded postal code.
type Location struct {
	PostalCode  string  `json:"postalCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"name"`
	Country     string  `json:"country"`
}

// LocationPatch carries a partial location update. Nil fields are left untouched on merge.
type LocationPatch struct {
	PostalCode  string   `json:"-"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	DisplayName *string  `json:"name,omitempty"`
	Country     *string  `json:"country,omitempty"`
}

// WeatherObservation is one normalized reading for a coordinate and calendar date.
// Date is always midnight UTC.
type WeatherObservation struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
}

// Units reported alongside observations at the request boundary.
const (
	TemperatureUnit = "°C"
	HumidityUnit    = "%"
	WindSpeedUnit   = "km/h"
)

// WeatherReport is the client-facing shape of an observation.
type WeatherReport struct {
	PostalCode      string  `json:"pincode"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Date            string  `json:"date"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
	Humidity        int     `json:"humidity"`
	HumidityUnit    string  `json:"humidityUnit"`
	WindSpeed       float64 `json:"windSpeed"`
	WindSpeedUnit   string  `json:"windSpeedUnit"`
}

// NewWeatherReport maps an observation to its client-facing report for the requested postal code.
func NewWeatherReport(postalCode string, obs WeatherObservation) WeatherReport {
	return WeatherReport{
		PostalCode:      postalCode,
		Latitude:        obs.Latitude,
		Longitude:       obs.Longitude,
		Date:            obs.Date.Format(DateLayout),
		Temperature:     obs.Temperature,
		TemperatureUnit: TemperatureUnit,
		Humidity:        obs.Humidity,
		HumidityUnit:    HumidityUnit,
		WindSpeed:       obs.WindSpeed,
		WindSpeedUnit:   WindSpeedUnit,
	}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
