package oauth

import "errors"

// GrantFailure is an expected grant-protocol outcome. Its message is the
// exact string sent on the wire in the error body, and its code labels
// the failure in metrics and logs.
type GrantFailure struct {
	code string
	msg  string
}

func (e *GrantFailure) Error() string { return e.msg }

// Code returns a short machine label for the failure.
func (e *GrantFailure) Code() string { return e.code }

var (
	// ErrUnknownAccount reports that the named account does not exist.
	ErrUnknownAccount = &GrantFailure{code: "unknown_account", msg: "Unknown user"}

	// ErrAuthenticationFailed reports a password mismatch for an
	// existing account.
	ErrAuthenticationFailed = &GrantFailure{code: "authentication_failed", msg: "Login failed"}

	// ErrRefreshFailed reports that the presented refresh token did not
	// match an active token on the caller's account.
	ErrRefreshFailed = &GrantFailure{code: "refresh_failed", msg: "Cannot refresh"}

	// ErrUnsupportedGrant reports the authorization_code grant, which the
	// server recognizes but never processes.
	ErrUnsupportedGrant = &GrantFailure{code: "unsupported_grant", msg: "Cannot process 'authorization_code'"}
)

// UnknownGrantError reports a grant_type outside the recognized set. The
// offending value is echoed back verbatim.
type UnknownGrantError struct {
	Type string
}

func (e UnknownGrantError) Error() string { return "Unknown grant type: " + e.Type }

// FailureMessage extracts the wire message from a grant-protocol failure.
// It reports false for internal faults, which must not leak onto the wire.
func FailureMessage(err error) (msg string, code string, ok bool) {
	var gf *GrantFailure
	if errors.As(err, &gf) {
		return gf.msg, gf.code, true
	}
	var ug UnknownGrantError
	if errors.As(err, &ug) {
		return ug.Error(), "unknown_grant", true
	}
	return "", "", false
}
