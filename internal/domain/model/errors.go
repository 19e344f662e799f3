package model

import "errors"

// ErrInvalidSeries reports a malformed event series.
var ErrInvalidSeries = errors.New("invalid event series")
