package oauth

import "net/url"

// GrantType identifies the requested grant flow.
type GrantType string

const (
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantAuthorizationCode GrantType = "authorization_code"
)

// GrantRequest is a parsed grant. The set of implementations is closed;
// unrecognized grant_type values parse to UnknownGrant rather than an
// error so the dispatcher can echo the offending value back.
type GrantRequest interface {
	grantType() GrantType
}

// PasswordGrant authenticates with a username and password.
type PasswordGrant struct {
	Username string
	Password string
	Scope    string
}

func (PasswordGrant) grantType() GrantType { return GrantPassword }

// RefreshGrant rotates an existing token pair. CallerToken is the bearer
// access token that identifies the account; RefreshToken is the secret
// presented in the form body.
type RefreshGrant struct {
	RefreshToken string
	CallerToken  string
	Scope        string
}

func (RefreshGrant) grantType() GrantType { return GrantRefreshToken }

// AuthorizationCodeGrant carries the fields of the standard flow. The
// server parses it for the record but always refuses to process it.
type AuthorizationCodeGrant struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURL  string
}

func (AuthorizationCodeGrant) grantType() GrantType { return GrantAuthorizationCode }

// UnknownGrant holds a grant_type outside the recognized set.
type UnknownGrant struct {
	Type string
}

func (UnknownGrant) grantType() GrantType { return GrantType("") }

// ParseGrantRequest reads the form parameters of a token request into the
// matching grant variant. callerToken is the bearer token from the
// Authorization header, used only by the refresh flow.
func ParseGrantRequest(form url.Values, callerToken string) GrantRequest {
	switch GrantType(form.Get("grant_type")) {
	case GrantPassword:
		return PasswordGrant{
			Username: form.Get("username"),
			Password: form.Get("password"),
			Scope:    form.Get("scope"),
		}
	case GrantRefreshToken:
		return RefreshGrant{
			RefreshToken: form.Get("refresh_token"),
			CallerToken:  callerToken,
			Scope:        form.Get("scope"),
		}
	case GrantAuthorizationCode:
		return AuthorizationCodeGrant{
			ClientID:     form.Get("client_id"),
			ClientSecret: form.Get("client_secret"),
			Code:         form.Get("code"),
			RedirectURL:  form.Get("redirect_url"),
		}
	default:
		return UnknownGrant{Type: form.Get("grant_type")}
	}
}
