package client

import (
	"context"
	"errors"

	"github.com/kjstillabower/pincode-weather-service/internal/openmeteo"
	"github.com/kjstillabower/pincode-weather-service/internal/validation"
)

// ErrorCategory is a stable label for error classification in metrics and responses.
type ErrorCategory string

// Error category constants used as metric labels (requestErrorsTotal) and response error codes.
const (
	ErrorCategoryInvalidPincode      ErrorCategory = "invalid_pincode"
	ErrorCategoryInvalidDate         ErrorCategory = "invalid_date"
	ErrorCategoryFutureDate          ErrorCategory = "future_date"
	ErrorCategoryLocationNotFound    ErrorCategory = "location_not_found"
	ErrorCategoryInvalidCredentials  ErrorCategory = "invalid_credentials"
	ErrorCategoryRemoteResolution    ErrorCategory = "remote_resolution"
	ErrorCategoryEmptyResponse       ErrorCategory = "empty_response"
	ErrorCategoryRemoteWeather       ErrorCategory = "remote_weather"
	ErrorCategoryMalformedPayload    ErrorCategory = "malformed_payload"
	ErrorCategoryUpstreamUnavailable ErrorCategory = "upstream_unavailable"
	ErrorCategoryTimeout             ErrorCategory = "timeout"
	ErrorCategoryUnknown             ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, validation.ErrPostalCodeEmpty),
		errors.Is(err, validation.ErrPostalCodeTooLong),
		errors.Is(err, validation.ErrPostalCodeInvalid):
		return ErrorCategoryInvalidPincode
	case errors.Is(err, validation.ErrInvalidDateFormat):
		return ErrorCategoryInvalidDate
	case errors.Is(err, validation.ErrFutureDateRejected):
		return ErrorCategoryFutureDate
	case errors.Is(err, ErrLocationNotFound):
		return ErrorCategoryLocationNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return ErrorCategoryInvalidCredentials
	case errors.Is(err, ErrRemoteResolutionFailed):
		return ErrorCategoryRemoteResolution
	case errors.Is(err, ErrEmptyRemoteResponse):
		return ErrorCategoryEmptyResponse
	case errors.Is(err, ErrRemoteWeatherFailed):
		return ErrorCategoryRemoteWeather
	case errors.Is(err, openmeteo.ErrMalformedWeatherPayload):
		return ErrorCategoryMalformedPayload
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrorCategoryUpstreamUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	}
	return ErrorCategoryUnknown
}

// IsClientError reports whether the category is a terminal failure caused by the request or by
// the provider's answer to it. These are answered with 400.
func IsClientError(c ErrorCategory) bool {
	switch c {
	case ErrorCategoryInvalidPincode,
		ErrorCategoryInvalidDate,
		ErrorCategoryFutureDate,
		ErrorCategoryLocationNotFound,
		ErrorCategoryInvalidCredentials,
		ErrorCategoryRemoteResolution,
		ErrorCategoryEmptyResponse,
		ErrorCategoryRemoteWeather,
		ErrorCategoryMalformedPayload:
		return true
	}
	return false
}
