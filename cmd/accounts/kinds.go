package accounts

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API outcomes).
var (
	ErrInvalidInput   = errors.New("invalid_input")
	ErrNotFound       = errors.New("not_found")
	ErrConflict       = errors.New("conflict")
	ErrNotActive      = errors.New("not_active")
	ErrBadCredentials = errors.New("bad_credentials")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
