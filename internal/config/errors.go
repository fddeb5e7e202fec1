package config

import (
	"errors"
)

// Errors returned by Load and Validate. Every validation failure wraps
// ErrInvalidConfig; a bad cache or rate limit backend also wraps
// ErrUnknownBackend.
var (
	ErrInvalidConfig  = errors.New("bookfinder: invalid config")
	ErrLoadConfig     = errors.New("bookfinder: load config failed")
	ErrUnknownBackend = errors.New("unknown backend")
)
