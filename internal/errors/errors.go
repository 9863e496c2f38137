package errors

import "fmt"

// Code classifies an ingest failure for exit handling and the event log.
type Code string

const (
	CodeConfiguration Code = "CONFIGURATION"  // required credential missing
	CodeAuthorization Code = "AUTHORIZATION"  // platform rejected credentials
	CodeRateLimited   Code = "RATE_LIMITED"   // platform throttled past the retry budget
	CodeNetwork       Code = "NETWORK"        // connection-level failure
	CodeValidation    Code = "VALIDATION"     // malformed CLI arguments
	CodeInternal      Code = "INTERNAL"       // unexpected failure
)

// IngestError carries a code plus optional structured details for logging.
type IngestError struct {
	Code    Code
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfiguration reports a credential missing from both the keys file and
// the environment.
func NewConfiguration(key, envVar string) *IngestError {
	return &IngestError{
		Code:    CodeConfiguration,
		Message: fmt.Sprintf("missing credential %q (set %s or add it to the keys file)", key, envVar),
		Details: map[string]any{"key": key, "env_var": envVar},
	}
}

// NewAuthorization reports a platform rejecting the supplied credentials.
func NewAuthorization(platform, msg string) *IngestError {
	return &IngestError{
		Code:    CodeAuthorization,
		Message: fmt.Sprintf("%s rejected credentials: %s", platform, msg),
		Details: map[string]any{"platform": platform},
	}
}

// NewRateLimited reports throttling that persisted past the retry budget.
func NewRateLimited(platform string, attempts int) *IngestError {
	return &IngestError{
		Code:    CodeRateLimited,
		Message: fmt.Sprintf("%s rate limited request after %d attempts", platform, attempts),
		Details: map[string]any{"platform": platform, "attempts": attempts},
	}
}

// NewNetwork wraps a connection-level failure. Not retried.
func NewNetwork(platform string, err error) *IngestError {
	return &IngestError{
		Code:    CodeNetwork,
		Message: fmt.Sprintf("%s request failed: %v", platform, err),
		Details: map[string]any{"platform": platform},
	}
}

// NewValidation reports a malformed CLI argument before any network call.
func NewValidation(msg string) *IngestError {
	return &IngestError{
		Code:    CodeValidation,
		Message: msg,
	}
}

// NewInternal wraps an unexpected failure.
func NewInternal(err error) *IngestError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &IngestError{
		Code:    CodeInternal,
		Message: msg,
	}
}

// Is checks whether err is an IngestError with the given code.
func Is(err error, code Code) bool {
	if iErr, ok := err.(*IngestError); ok {
		return iErr.Code == code
	}
	return false
}
