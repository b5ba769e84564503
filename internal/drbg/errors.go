package drbg

import (
	"errors"
	"fmt"
)

var (
	// ErrUninstantiated is returned when a generator is used before it has
	// been instantiated, or after it was uninstantiated.
	ErrUninstantiated = errors.New("drbg: not instantiated")

	// ErrReseedRequired indicates that the reseed interval is exhausted (or
	// prediction resistance was requested) and no entropy source is
	// available to perform the reseed.
	ErrReseedRequired = errors.New("drbg: reseed required")

	// ErrFailed is returned by every operation after an engine failure
	// until the DRBG is instantiated again.
	ErrFailed = errors.New("drbg: generator is in the error state")

	ErrRequestTooLarge = errors.New("drbg: request too large")
	ErrEntropyTooShort = errors.New("drbg: entropy input too short")
	ErrNoEntropySource = errors.New("drbg: no entropy source configured")
)

// ConfigurationError reports an unsupported mechanism, algorithm, strength
// or capability, or a malformed configuration string.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "drbg: invalid configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}

// CapabilityError is returned when a reseed or prediction resistance is
// requested from a DRBG whose capability does not allow it. No state is
// modified.
type CapabilityError struct {
	Capability Capability
	Requested  string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("drbg: %s not permitted with capability %s", e.Requested, e.Capability)
}

// InternalError wraps a failure of the underlying digest or MAC engine on
// input it must accept. The working state is left as it was before the
// failing call.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("drbg: engine failure during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
