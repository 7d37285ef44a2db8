package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidURL is returned when a URL is not http(s).
	ErrInvalidURL = errors.New("invalid URL: must start with http:// or https://")

	// ErrNoFrames is returned when extraction produced no frames.
	ErrNoFrames = errors.New("no frames extracted")

	// ErrAuthRequired is returned when a download needs credentials and
	// none are available for the platform.
	ErrAuthRequired = errors.New("authentication required but no credentials available")

	// ErrStaleCredentials is returned when a credentialed retry still fails.
	ErrStaleCredentials = errors.New("download failed with credentials, cookies may be stale")

	// ErrContentUnavailable marks permanent content failures
	// (deleted, private, copyright, unsupported). Callers must not retry.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrRateLimited marks transient failures recoverable by retry with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrProvidersExhausted is returned when every configured LLM provider failed.
	ErrProvidersExhausted = errors.New("all LLM providers exhausted")

	// ErrNoProviders is returned when no provider has a usable API key.
	ErrNoProviders = errors.New("no LLM providers configured")

	// ErrMalformedResponse is returned by the quick name-only parser when
	// the model output carries no usable JSON. The full recipe parser never
	// returns it; it falls back instead.
	ErrMalformedResponse = errors.New("malformed model response")
)

// IsPermanent reports whether err marks a permanent content failure that
// a retry layer must not retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrContentUnavailable) ||
		errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrInvalidURL)
}

// IsRetryable reports whether err is transient and recoverable by
// caller-level retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrStaleCredentials)
}

// PipelineError wraps an error with the pipeline stage that produced it.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(stage string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}

// ValidationError reports a missing or mistyped required recipe field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid recipe: " + e.Field + " " + e.Reason
}
