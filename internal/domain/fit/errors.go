package fit

import "errors"

// Sentinel kinds for fit errors. ErrNonConvergence is never returned by
// Fit; it is the reason recorded on a non-converged result.
var (
	ErrNonConvergence = errors.New("optimizer did not converge")
	ErrUnknownMethod  = errors.New("unknown optimization method")
)
