package smoke

import "errors"

// Sentinel errors for this package.
var (
	ErrInvalidConfig = errors.New("invalid smoke config")
	ErrInvalidSuite  = errors.New("invalid suite")
)
