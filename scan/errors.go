package scan

import "errors"

// Canonical errors used across this package, in the style of a single
// sentinel per failure kind rather than a hierarchy of error types.
var (
	// ErrInvalidResources is returned when resources.prefix_a or
	// resources.prefix_b are not live (never created, or disposed).
	ErrInvalidResources = errors.New("scan: support resources are not live")

	// ErrInvalidInput is returned when the input buffer is nil, or
	// (indirect mode only) the input-count buffer is nil.
	ErrInvalidInput = errors.New("scan: input buffer is nil")

	// ErrCapacityExceeded is returned (direct mode only) when the
	// requested count exceeds the resources' aligned element count.
	ErrCapacityExceeded = errors.New("scan: requested count exceeds resource capacity")

	// ErrKernelNotLoaded is returned when the engine is used before
	// Init or after Dispose.
	ErrKernelNotLoaded = errors.New("scan: engine kernels are not loaded")
)
