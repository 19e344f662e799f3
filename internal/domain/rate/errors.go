package rate

import "errors"

// Sentinel kinds for rate specification errors.
var (
	ErrSpecification  = errors.New("invalid rate specification")
	ErrThetaLength    = errors.New("parameter vector length mismatch")
	ErrCovariateRange = errors.New("invalid covariate table")
)
