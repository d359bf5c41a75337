package engine

import "errors"

// Sentinel errors for the facade's synchronous calls. Worker-side
// failures (load or analysis failures) are not sentinel errors here;
// they are reported through the event queue instead.
var (
	ErrValidation     = errors.New("engine: validation failed")
	ErrNotInitialized = errors.New("engine: not initialized")
	ErrConcurrency    = errors.New("engine: concurrent operation already in progress")
	ErrQueueFull      = errors.New("engine: control queue full")
)
