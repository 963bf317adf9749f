package client

import "errors"

// Remote failure kinds. Each is surfaced to callers as the Kind of a *RemoteError.
var (
	ErrLocationNotFound       = errors.New("location not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrRemoteResolutionFailed = errors.New("remote resolution failed")
	ErrEmptyRemoteResponse    = errors.New("empty remote response")
	ErrRemoteWeatherFailed    = errors.New("remote weather failed")
)

// ErrUpstreamUnavailable covers transport failures, 5xx responses and an open circuit.
// It is not a client error; the request boundary answers 503.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// RemoteError carries the provider's message verbatim alongside its failure kind.
type RemoteError struct {
	Kind    error
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

func remoteError(kind error, msg string) error {
	return &RemoteError{Kind: kind, Message: msg}
}
