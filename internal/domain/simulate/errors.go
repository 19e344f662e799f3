package simulate

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidHorizon = errors.New("horizon must be after the start time")
	ErrTooFewEvents   = errors.New("too few events for a diagnostic")
)
