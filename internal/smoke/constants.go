package smoke

import "time"

// Defaults applied when a Config or Probe leaves a field empty.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRateLimitAttempts = 120
	DefaultMethod            = "GET"
)

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusTooManyRequests = 429
)

// Reporting constants.
const (
	// MaxExitCode keeps the failure count below the range shells use for
	// signals and "command not found".
	MaxExitCode = 125

	msRound             = time.Millisecond
	bodyExcerptLen      = 200
	reportPermission    = 0o600
	directoryPermission = 0o750
)
