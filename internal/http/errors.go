package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
	"github.com/kjstillabower/pincode-weather-service/internal/traffic"
	"github.com/kjstillabower/pincode-weather-service/internal/validation"
)

// statusForCategory maps an error category to the response status.
func statusForCategory(c client.ErrorCategory) int {
	switch {
	case client.IsClientError(c):
		return http.StatusBadRequest
	case c == client.ErrorCategoryUpstreamUnavailable, c == client.ErrorCategoryTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for err. Provider messages on 400s are passed
// through verbatim; server-side failures are not exposed.
func messageFor(err error, c client.ErrorCategory, dateInput string) string {
	switch {
	case errors.Is(err, validation.ErrInvalidDateFormat):
		return "Invalid Date: " + dateInput
	case errors.Is(err, validation.ErrFutureDateRejected):
		return "Enter current date or previous date"
	case client.IsClientError(c):
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			return remote.Message
		}
		return err.Error()
	case statusForCategory(c) == http.StatusServiceUnavailable:
		return "Unable to fetch weather data"
	default:
		return "Internal server error"
	}
}

// writeFailure categorises err, records the outcome and writes the error response.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error, dateInput string) {
	category := client.CategorizeError(err)
	status := statusForCategory(category)
	observability.RequestErrorsTotal.WithLabelValues(string(category)).Inc()

	logger := observability.LoggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		h.tracker.Record(traffic.ServerError)
		logger.Error("request failed", zap.String("category", string(category)), zap.Error(err))
	} else {
		h.tracker.Record(traffic.ClientError)
		logger.Debug("request rejected", zap.String("category", string(category)), zap.Error(err))
	}

	writeError(w, r, status, strings.ToUpper(string(category)), messageFor(err, category, dateInput))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
