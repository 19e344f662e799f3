package uncertainty

import "errors"

// ErrHessian reports a Hessian that could not be computed or decomposed.
var ErrHessian = errors.New("hessian unavailable")
