// Package openmeteo turns Open-Meteo forecast and archive responses into weather observations.
package openmeteo

import "encoding/json"

// Payload is the subset of an Open-Meteo response the service reads. The live endpoint fills
// both sections; the archive endpoint only Hourly.
//
// Numbers are decoded as json.Number so both 25.5 and "25.5" are accepted.
type Payload struct {
	Current *CurrentSection `json:"current"`
	Hourly  *HourlySection  `json:"hourly"`
}

// CurrentSection is the real-time reading of the live endpoint.
type CurrentSection struct {
	Time        string      `json:"time"`
	Temperature json.Number `json:"temperature_2m"`
	WindSpeed   json.Number `json:"wind_speed_10m"`
}

// HourlySection holds parallel hourly series indexed by hour of day.
type HourlySection struct {
	Time        []string      `json:"time"`
	Temperature []json.Number `json:"temperature_2m"`
	Humidity    []json.Number `json:"relative_humidity_2m"`
	WindSpeed   []json.Number `json:"wind_speed_10m"`
}

// ErrorBody is the structured error an Open-Meteo endpoint returns with a 4xx status.
type ErrorBody struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}
