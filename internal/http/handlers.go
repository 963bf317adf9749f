package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/pincode-weather-service/internal/lifecycle"
	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/traffic"
	"github.com/kjstillabower/pincode-weather-service/internal/validation"
)

const maxBodyBytes = 1 << 16

// WeatherService resolves an observation for a postal code and YYYY-MM-DD date.
type WeatherService interface {
	GetWeatherForDate(ctx context.Context, postalCode, date string) (models.WeatherObservation, error)
}

// LocationService resolves and updates locations.
type LocationService interface {
	Resolve(ctx context.Context, postalCode string) (models.Location, error)
	Update(ctx context.Context, patch models.LocationPatch) (models.Location, error)
}

// HealthConfig holds thresholds and dependency checks for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, reports cache reachability. A failing cache does not degrade health.
	CachePing func(ctx context.Context) error
	// StorePing, when set, reports store reachability. A failing store degrades health.
	StorePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather          WeatherService
	locations        LocationService
	healthConfig     *HealthConfig
	tracker          *traffic.Tracker
	logger           *zap.Logger
	maxPostalCodeLen int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. maxPostalCodeLen of 0 disables the length check.
func NewHandler(
	weather WeatherService,
	locations LocationService,
	healthConfig *HealthConfig,
	tracker *traffic.Tracker,
	logger *zap.Logger,
	maxPostalCodeLen int,
) *Handler {
	if tracker == nil {
		tracker = traffic.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:          weather,
		locations:        locations,
		healthConfig:     healthConfig,
		tracker:          tracker,
		logger:           logger,
		maxPostalCodeLen: maxPostalCodeLen,
	}
}

// GetWeather handles GET /weather?pincode=<code>&for_date=<YYYY-MM-DD>.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("for_date")
	code, err := validation.ValidatePostalCode(q.Get("pincode"), h.maxPostalCodeLen)
	if err != nil {
		h.writeFailure(w, r, err, date)
		return
	}

	obs, err := h.weather.GetWeatherForDate(r.Context(), code, date)
	if err != nil {
		h.writeFailure(w, r, err, date)
		return
	}
	h.tracker.Record(traffic.Success)
	writeJSON(w, http.StatusOK, models.NewWeatherReport(code, obs))
}

// GetLocation handles GET /locations/{pincode}.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	code, err := validation.ValidatePostalCode(mux.Vars(r)["pincode"], h.maxPostalCodeLen)
	if err != nil {
		h.writeFailure(w, r, err, "")
		return
	}
	loc, err := h.locations.Resolve(r.Context(), code)
	if err != nil {
		h.writeFailure(w, r, err, "")
		return
	}
	h.tracker.Record(traffic.Success)
	writeJSON(w, http.StatusOK, loc)
}

// PutLocation handles PUT /locations/{pincode}. Fields absent from the body keep their stored
// values; a location that does not exist yet is created.
func (h *Handler) PutLocation(w http.ResponseWriter, r *http.Request) {
	code, err := validation.ValidatePostalCode(mux.Vars(r)["pincode"], h.maxPostalCodeLen)
	if err != nil {
		h.writeFailure(w, r, err, "")
		return
	}

	var patch models.LocationPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&patch); err != nil {
		h.tracker.Record(traffic.ClientError)
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return
	}
	if msg := checkCoordinates(patch); msg != "" {
		h.tracker.Record(traffic.ClientError)
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", msg)
		return
	}
	patch.PostalCode = code

	loc, err := h.locations.Update(r.Context(), patch)
	if err != nil {
		h.writeFailure(w, r, err, "")
		return
	}
	h.tracker.Record(traffic.Success)
	writeJSON(w, http.StatusOK, loc)
}

func checkCoordinates(p models.LocationPatch) string {
	if p.Latitude != nil && (math.IsNaN(*p.Latitude) || *p.Latitude < -90 || *p.Latitude > 90) {
		return "latitude must be between -90 and 90"
	}
	if p.Longitude != nil && (math.IsNaN(*p.Longitude) || *p.Longitude < -180 || *p.Longitude > 180) {
		return "longitude must be between -180 and 180"
	}
	return ""
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string)
	var storeErr error
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			checks["cache"] = checkStatus(h.healthConfig.CachePing(ctx))
		}
		if h.healthConfig.StorePing != nil {
			storeErr = h.healthConfig.StorePing(ctx)
			checks["store"] = checkStatus(storeErr)
		}
	}
	result := h.computeHealthStatus(storeErr)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "pincode-weather-service",
		"version":   "dev",
		"uptime":    lifecycle.Uptime().String(),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus applies, in order: shutting-down > degraded (store unreachable or server
// error rate at or above threshold) > healthy.
func (h *Handler) computeHealthStatus(storeErr error) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if storeErr != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if h.healthConfig != nil && h.tracker.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}
