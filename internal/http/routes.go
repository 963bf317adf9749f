package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/pincode-weather-service/internal/observability"
)

// RouterConfig holds the limits applied to the resolution routes.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Limiter is shared by /weather and /locations. Nil disables rate limiting.
	Limiter *rate.Limiter
}

// NewRouter wires h into a mux router. /health and /metrics bypass rate limiting and timeouts.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter, h.tracker))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/locations/{pincode}", h.GetLocation).Methods(http.MethodGet)
	api.HandleFunc("/locations/{pincode}", h.PutLocation).Methods(http.MethodPut)

	return router
}
