package selection

import "errors"

// Sentinel kinds for model selection errors.
var (
	ErrDegenerateCorrection = errors.New("degenerate AICc correction: n-k-1 <= 0")
	ErrNoCandidates         = errors.New("no rankable candidates")
	ErrUnknownCriterion     = errors.New("unknown information criterion")
)
