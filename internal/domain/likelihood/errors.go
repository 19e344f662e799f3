package likelihood

import "errors"

// Sentinel kinds for likelihood evaluation errors.
var (
	ErrNonPositiveRate  = errors.New("non-positive rate at an observed event")
	ErrNonFinite        = errors.New("non-finite likelihood")
	ErrEmptySeries      = errors.New("event series has no events")
	ErrUnknownExclusion = errors.New("unknown exclusion policy")
	ErrExclusionOffset  = errors.New("invalid exclusion offset")
)
