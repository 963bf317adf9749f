package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/lifecycle"
	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/traffic"
	"github.com/kjstillabower/pincode-weather-service/internal/validation"
)

type fakeWeather struct {
	obs      models.WeatherObservation
	err      error
	block    bool
	gotCode  string
	gotDate  string
	numCalls int
}

func (f *fakeWeather) GetWeatherForDate(ctx context.Context, postalCode, date string) (models.WeatherObservation, error) {
	f.numCalls++
	f.gotCode, f.gotDate = postalCode, date
	if f.block {
		<-ctx.Done()
		return models.WeatherObservation{}, ctx.Err()
	}
	return f.obs, f.err
}

type fakeLocations struct {
	loc      models.Location
	err      error
	gotPatch models.LocationPatch
}

func (f *fakeLocations) Resolve(ctx context.Context, postalCode string) (models.Location, error) {
	if f.err != nil {
		return models.Location{}, f.err
	}
	loc := f.loc
	loc.PostalCode = postalCode
	return loc, nil
}

func (f *fakeLocations) Update(ctx context.Context, patch models.LocationPatch) (models.Location, error) {
	f.gotPatch = patch
	if f.err != nil {
		return models.Location{}, f.err
	}
	loc := f.loc
	loc.PostalCode = patch.PostalCode
	if patch.Latitude != nil {
		loc.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		loc.Longitude = *patch.Longitude
	}
	return loc, nil
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func newTestRouter(w *fakeWeather, l *fakeLocations, hc *HealthConfig, tracker *traffic.Tracker) http.Handler {
	h := NewHandler(w, l, hc, tracker, zap.NewNop(), 16)
	return NewRouter(h, RouterConfig{RequestTimeout: time.Second}, zap.NewNop())
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-Correlation-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandler_GetWeather_Success(t *testing.T) {
	weather := &fakeWeather{obs: models.WeatherObservation{
		Latitude:    28.6139,
		Longitude:   77.209,
		Date:        time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Temperature: 24.5,
		Humidity:    41,
		WindSpeed:   11.2,
	}}
	router := newTestRouter(weather, &fakeLocations{}, nil, nil)

	rec := serve(t, router, http.MethodGet, "/weather?pincode=110001&for_date=2025-03-20", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	if weather.gotCode != "110001" || weather.gotDate != "2025-03-20" {
		t.Errorf("service called with (%q, %q)", weather.gotCode, weather.gotDate)
	}
	var report models.WeatherReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.WeatherReport{
		PostalCode:      "110001",
		Latitude:        28.6139,
		Longitude:       77.209,
		Date:            "2025-03-20",
		Temperature:     24.5,
		TemperatureUnit: "°C",
		Humidity:        41,
		HumidityUnit:    "%",
		WindSpeed:       11.2,
		WindSpeedUnit:   "km/h",
	}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
}

func TestHandler_GetWeather_InvalidPincode(t *testing.T) {
	weather := &fakeWeather{}
	router := newTestRouter(weather, &fakeLocations{}, nil, nil)

	for _, target := range []string{
		"/weather?for_date=2025-03-20",
		"/weather?pincode=%20%20&for_date=2025-03-20",
		"/weather?pincode=1100%2A01&for_date=2025-03-20",
		"/weather?pincode=12345678901234567&for_date=2025-03-20",
	} {
		rec := serve(t, router, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
			continue
		}
		if body := decodeError(t, rec); body.Error.Code != "INVALID_PINCODE" {
			t.Errorf("%s: code = %q, want INVALID_PINCODE", target, body.Error.Code)
		}
	}
	if weather.numCalls != 0 {
		t.Errorf("service called %d times for invalid pincodes", weather.numCalls)
	}
}

func TestHandler_GetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		date        string
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "invalid date echoes input",
			err:         fmt.Errorf("%w: %q", validation.ErrInvalidDateFormat, "2025-13-45"),
			date:        "2025-13-45",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_DATE",
			wantMessage: "Invalid Date: 2025-13-45",
		},
		{
			name:        "future date",
			err:         validation.ErrFutureDateRejected,
			date:        "2099-01-01",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "FUTURE_DATE",
			wantMessage: "Enter current date or previous date",
		},
		{
			name:        "location not found passes provider message",
			err:         &client.RemoteError{Kind: client.ErrLocationNotFound, Message: "Pincode: 999999 not found"},
			date:        "2025-03-20",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "LOCATION_NOT_FOUND",
			wantMessage: "Pincode: 999999 not found",
		},
		{
			name:        "invalid credentials",
			err:         &client.RemoteError{Kind: client.ErrInvalidCredentials, Message: "Invalid API key"},
			date:        "2025-03-20",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_CREDENTIALS",
			wantMessage: "Invalid API key",
		},
		{
			name:        "remote weather failure wrapped",
			err:         fmt.Errorf("historical weather: %w", &client.RemoteError{Kind: client.ErrRemoteWeatherFailed, Message: "Parameter 'start_date' is out of allowed range"}),
			date:        "1900-01-01",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "REMOTE_WEATHER",
			wantMessage: "Parameter 'start_date' is out of allowed range",
		},
		{
			name:        "upstream unavailable",
			err:         fmt.Errorf("current weather: %w", client.ErrUpstreamUnavailable),
			date:        "2025-03-20",
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "UPSTREAM_UNAVAILABLE",
			wantMessage: "Unable to fetch weather data",
		},
		{
			name:        "store failure",
			err:         errors.New("pq: connection refused"),
			date:        "2025-03-20",
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "UNKNOWN",
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := traffic.New()
			router := newTestRouter(&fakeWeather{err: tt.err}, &fakeLocations{}, nil, tracker)

			rec := serve(t, router, http.MethodGet, "/weather?pincode=110001&for_date="+tt.date, "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeError(t, rec)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if body.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Error.Message, tt.wantMessage)
			}
			if body.Error.RequestID != "req-1" {
				t.Errorf("requestId = %q, want req-1", body.Error.RequestID)
			}

			counts := tracker.Counts(time.Minute)
			if tt.wantStatus >= 500 && counts[traffic.ServerError] != 1 {
				t.Errorf("server errors recorded = %d, want 1", counts[traffic.ServerError])
			}
			if tt.wantStatus < 500 && counts[traffic.ClientError] != 1 {
				t.Errorf("client errors recorded = %d, want 1", counts[traffic.ClientError])
			}
		})
	}
}

func TestHandler_GetWeather_RequestTimeout(t *testing.T) {
	h := NewHandler(&fakeWeather{block: true}, &fakeLocations{}, nil, nil, zap.NewNop(), 16)
	router := NewRouter(h, RouterConfig{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())

	rec := serve(t, router, http.MethodGet, "/weather?pincode=110001&for_date=2025-03-20", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != "TIMEOUT" {
		t.Errorf("code = %q, want TIMEOUT", body.Error.Code)
	}
}

func TestHandler_GetLocation(t *testing.T) {
	locations := &fakeLocations{loc: models.Location{Latitude: 19.076, Longitude: 72.8777, DisplayName: "Mumbai", Country: "IN"}}
	router := newTestRouter(&fakeWeather{}, locations, nil, nil)

	rec := serve(t, router, http.MethodGet, "/locations/400001", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.Location
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PostalCode != "400001" || got.DisplayName != "Mumbai" || got.Latitude != 19.076 {
		t.Errorf("location = %+v", got)
	}
}

func TestHandler_GetLocation_NotFound(t *testing.T) {
	locations := &fakeLocations{err: &client.RemoteError{Kind: client.ErrLocationNotFound, Message: "Pincode: 000000 not found"}}
	router := newTestRouter(&fakeWeather{}, locations, nil, nil)

	rec := serve(t, router, http.MethodGet, "/locations/000000", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Message != "Pincode: 000000 not found" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestHandler_PutLocation_PartialPatch(t *testing.T) {
	locations := &fakeLocations{loc: models.Location{Latitude: 1, Longitude: 2, DisplayName: "Old", Country: "IN"}}
	router := newTestRouter(&fakeWeather{}, locations, nil, nil)

	rec := serve(t, router, http.MethodPut, "/locations/560001", `{"longitude": 77.5946}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	p := locations.gotPatch
	if p.PostalCode != "560001" {
		t.Errorf("patch postal code = %q, want path value 560001", p.PostalCode)
	}
	if p.Latitude != nil || p.DisplayName != nil || p.Country != nil {
		t.Errorf("absent fields should stay nil: %+v", p)
	}
	if p.Longitude == nil || *p.Longitude != 77.5946 {
		t.Errorf("longitude = %v, want 77.5946", p.Longitude)
	}
	var got models.Location
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Latitude != 1 || got.Longitude != 77.5946 {
		t.Errorf("merged location = %+v", got)
	}
}

func TestHandler_PutLocation_InvalidBody(t *testing.T) {
	locations := &fakeLocations{}
	router := newTestRouter(&fakeWeather{}, locations, nil, nil)

	for _, body := range []string{`{"latitude":`, `{"latitude": 91}`, `{"longitude": -180.5}`, `[]`} {
		rec := serve(t, router, http.MethodPut, "/locations/560001", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
			continue
		}
		if got := decodeError(t, rec); got.Error.Code != "INVALID_BODY" {
			t.Errorf("%s: code = %q, want INVALID_BODY", body, got.Error.Code)
		}
	}
	if locations.gotPatch.PostalCode != "" {
		t.Error("Update should not be called for invalid bodies")
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, nil, nil)
	rec := serve(t, router, http.MethodPost, "/weather?pincode=110001", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return body
}

func TestHandler_GetHealth(t *testing.T) {
	hc := &HealthConfig{
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 5,
		CachePing:        func(context.Context) error { return nil },
		StorePing:        func(context.Context) error { return nil },
	}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, nil)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeHealth(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["cache"] != "healthy" || checks["store"] != "healthy" {
		t.Errorf("checks = %v", checks)
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("uptime missing")
	}
}

func TestHandler_GetHealth_CacheDownStaysHealthy(t *testing.T) {
	hc := &HealthConfig{CachePing: func(context.Context) error { return errors.New("dial tcp: refused") }}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, nil)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	checks, _ := decodeHealth(t, rec)["checks"].(map[string]interface{})
	if checks["cache"] != "unhealthy" {
		t.Errorf("cache check = %v, want unhealthy", checks["cache"])
	}
}

func TestHandler_GetHealth_StoreDownDegraded(t *testing.T) {
	hc := &HealthConfig{StorePing: func(context.Context) error { return errors.New("database is closed") }}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, nil)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeHealth(t, rec)["status"]; got != "degraded" {
		t.Errorf("status = %v, want degraded", got)
	}
}

func TestHandler_GetHealth_DegradedErrorRate(t *testing.T) {
	tracker := traffic.New()
	for i := 0; i < 8; i++ {
		tracker.Record(traffic.Success)
	}
	tracker.Record(traffic.ServerError)
	tracker.Record(traffic.ServerError)
	hc := &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 10}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, tracker)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeHealth(t, rec)["status"]; got != "degraded" {
		t.Errorf("status = %v, want degraded", got)
	}
}

func TestHandler_GetHealth_ClientErrorsDoNotDegrade(t *testing.T) {
	tracker := traffic.New()
	for i := 0; i < 20; i++ {
		tracker.Record(traffic.ClientError)
		tracker.Record(traffic.Denied)
	}
	hc := &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 5}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, tracker)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	hc := &HealthConfig{StorePing: func(context.Context) error { return errors.New("closed") }}
	router := newTestRouter(&fakeWeather{}, &fakeLocations{}, hc, nil)

	rec := serve(t, router, http.MethodGet, "/health", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeHealth(t, rec)["status"]; got != "shutting-down" {
		t.Errorf("status = %v, want shutting-down", got)
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	storeDown := false
	hc := &HealthConfig{StorePing: func(context.Context) error {
		if storeDown {
			return errors.New("closed")
		}
		return nil
	}}
	h := NewHandler(&fakeWeather{}, &fakeLocations{}, hc, nil, zap.New(core), 16)

	for _, down := range []bool{false, false, true} {
		storeDown = down
		rec := httptest.NewRecorder()
		h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" || fields["reason"] != "store_unreachable" {
		t.Errorf("transition fields = %v", fields)
	}
}
