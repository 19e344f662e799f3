package eventfile

import "errors"

// ErrMalformedRow reports a CSV row that cannot be parsed.
var ErrMalformedRow = errors.New("malformed row")
