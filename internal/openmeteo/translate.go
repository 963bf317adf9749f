package openmeteo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
)

// ErrMalformedWeatherPayload is returned when a payload lacks a required field, carries a
// non-numeric value where a number is expected, or has an unparseable date.
var ErrMalformedWeatherPayload = errors.New("malformed weather payload")

// HourIndex returns the hourly-series index sampled for a payload translated at now:
// the hour of day (UTC) minus one. At hour 0 there is no previous hour in the day's series, so
// the first sample is used rather than failing every request made between 00:00 and 00:59.
func HourIndex(now time.Time) int {
	idx := now.UTC().Hour() - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// Translate decodes body and maps it to an observation. Latitude and longitude are left for
// the caller to fill in from the resolved location.
//
// With a current section, date, temperature and wind speed come from it and humidity from the
// hourly series at HourIndex(now). Without one, all four fields come from the hourly series at
// that index, which means archive days are sampled at the server's current hour of day.
func Translate(body []byte, now time.Time) (models.WeatherObservation, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: decode: %v", ErrMalformedWeatherPayload, err)
	}
	if p.Hourly == nil {
		return models.WeatherObservation{}, fmt.Errorf("%w: missing hourly section", ErrMalformedWeatherPayload)
	}
	idx := HourIndex(now)
	if p.Current != nil {
		return translateCurrent(p.Current, p.Hourly, idx)
	}
	return translateHourly(p.Hourly, idx)
}

func translateCurrent(cur *CurrentSection, hourly *HourlySection, idx int) (models.WeatherObservation, error) {
	var obs models.WeatherObservation
	var err error
	if obs.Date, err = parseDate("current.time", cur.Time); err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.Temperature, err = parseFloat("current.temperature_2m", cur.Temperature); err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.WindSpeed, err = parseFloat("current.wind_speed_10m", cur.WindSpeed); err != nil {
		return models.WeatherObservation{}, err
	}
	h, err := at("hourly.relative_humidity_2m", hourly.Humidity, idx)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.Humidity, err = parseInt("hourly.relative_humidity_2m", h); err != nil {
		return models.WeatherObservation{}, err
	}
	return obs, nil
}

func translateHourly(hourly *HourlySection, idx int) (models.WeatherObservation, error) {
	var obs models.WeatherObservation
	if idx >= len(hourly.Time) {
		return models.WeatherObservation{}, fmt.Errorf("%w: hourly.time has %d entries, need index %d", ErrMalformedWeatherPayload, len(hourly.Time), idx)
	}
	var err error
	if obs.Date, err = parseDate("hourly.time", hourly.Time[idx]); err != nil {
		return models.WeatherObservation{}, err
	}
	t, err := at("hourly.temperature_2m", hourly.Temperature, idx)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.Temperature, err = parseFloat("hourly.temperature_2m", t); err != nil {
		return models.WeatherObservation{}, err
	}
	h, err := at("hourly.relative_humidity_2m", hourly.Humidity, idx)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.Humidity, err = parseInt("hourly.relative_humidity_2m", h); err != nil {
		return models.WeatherObservation{}, err
	}
	w, err := at("hourly.wind_speed_10m", hourly.WindSpeed, idx)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if obs.WindSpeed, err = parseFloat("hourly.wind_speed_10m", w); err != nil {
		return models.WeatherObservation{}, err
	}
	return obs, nil
}

func at(field string, series []json.Number, idx int) (json.Number, error) {
	if idx >= len(series) {
		return "", fmt.Errorf("%w: %s has %d entries, need index %d", ErrMalformedWeatherPayload, field, len(series), idx)
	}
	return series[idx], nil
}

func parseFloat(field string, n json.Number) (float64, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: %s missing", ErrMalformedWeatherPayload, field)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s not numeric: %q", ErrMalformedWeatherPayload, field, n.String())
	}
	return f, nil
}

// parseInt truncates fractional values, so 61.7 reads as 61.
func parseInt(field string, n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := parseFloat(field, n)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// parseDate accepts "2006-01-02" and Open-Meteo's "2006-01-02T15:04" timestamps.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %s missing", ErrMalformedWeatherPayload, field)
	}
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	d, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s not a date: %q", ErrMalformedWeatherPayload, field, s)
	}
	return d, nil
}
