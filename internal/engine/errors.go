package engine

import "errors"

var (
	// ErrBusy is returned when a bounded lock acquisition times out.
	// Callers surface it as backpressure instead of blocking.
	ErrBusy = errors.New("engine: busy")

	// ErrInvalidTransition reports a state-machine transition that is not
	// legal from the current status. In strict mode the engine panics
	// instead of returning it.
	ErrInvalidTransition = errors.New("engine: invalid transition")

	// ErrNotTracked is returned for symbols the engine was not
	// configured to trade.
	ErrNotTracked = errors.New("engine: symbol not tracked")
)
