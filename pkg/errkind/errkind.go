// Package errkind defines the error taxonomy shared across the framework.
// Callers classify failures with errors.Is against the sentinel kinds below
// and wrap them with fmt.Errorf("…: %w", …) to add context.
package errkind

import "errors"

var (
	// ErrConfigInvalid indicates a configuration validation failure.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrMissingClient indicates a lookup for an unregistered client name.
	ErrMissingClient = errors.New("client not registered")

	// ErrMissingDriver indicates an optional driver package is not available.
	ErrMissingDriver = errors.New("driver not available")

	// ErrReadOnlyScope indicates a write attempt on the environment scope.
	ErrReadOnlyScope = errors.New("scope is read-only")

	// ErrTemplateUnresolved indicates a variable or utility lookup failed
	// during template resolution.
	ErrTemplateUnresolved = errors.New("template placeholder unresolved")

	// ErrCyclicTemplate indicates resolution exceeded the maximum pass count.
	ErrCyclicTemplate = errors.New("cyclic template")

	// ErrTimeout indicates a network or operation deadline was exceeded.
	ErrTimeout = errors.New("operation timed out")

	// ErrNetwork indicates a transport-level failure.
	ErrNetwork = errors.New("network error")

	// ErrAssertionFailed indicates an assertion evaluated false or threw.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrExtractionFailed indicates an extraction path was not found.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrSchemaInvalid indicates JSON schema validation failed.
	ErrSchemaInvalid = errors.New("schema validation failed")

	// ErrCancelled indicates a shutdown-initiated abort.
	ErrCancelled = errors.New("cancelled")
)

// Retryable reports whether the error may succeed on a retry.
// Only transient transport failures and timeouts qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}
