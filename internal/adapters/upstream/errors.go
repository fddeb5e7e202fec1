package upstream

import "errors"

// Sentinel errors for this package.
var (
	// ErrStatus is returned for non-2xx responses other than 404.
	ErrStatus = errors.New("unexpected upstream status")
	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("decode upstream response")
	// ErrDisabled is returned by clients that lack required credentials.
	ErrDisabled = errors.New("upstream disabled")
)
