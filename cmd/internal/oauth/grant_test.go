package oauth

import (
	"net/url"
	"testing"
)

func TestParseGrantRequest(t *testing.T) {
	t.Parallel()

	t.Run("password", func(t *testing.T) {
		form := url.Values{
			"grant_type": {"password"},
			"username":   {"Alice"},
			"password":   {"s3cret"},
			"scope":      {"owner"},
		}
		g, ok := ParseGrantRequest(form, "").(PasswordGrant)
		if !ok {
			t.Fatalf("expected PasswordGrant")
		}
		if g.Username != "Alice" || g.Password != "s3cret" || g.Scope != "owner" {
			t.Fatalf("unexpected fields: %+v", g)
		}
	})

	t.Run("refresh_token", func(t *testing.T) {
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {"r-abc"},
		}
		g, ok := ParseGrantRequest(form, "bearer-tok").(RefreshGrant)
		if !ok {
			t.Fatalf("expected RefreshGrant")
		}
		if g.RefreshToken != "r-abc" || g.CallerToken != "bearer-tok" {
			t.Fatalf("unexpected fields: %+v", g)
		}
	})

	t.Run("authorization_code", func(t *testing.T) {
		form := url.Values{
			"grant_type": {"authorization_code"},
			"client_id":  {"c1"},
			"code":       {"xyz"},
		}
		g, ok := ParseGrantRequest(form, "").(AuthorizationCodeGrant)
		if !ok {
			t.Fatalf("expected AuthorizationCodeGrant")
		}
		if g.ClientID != "c1" || g.Code != "xyz" {
			t.Fatalf("unexpected fields: %+v", g)
		}
	})

	t.Run("unknown echoes the raw value", func(t *testing.T) {
		form := url.Values{"grant_type": {"saml_bearer"}}
		g, ok := ParseGrantRequest(form, "").(UnknownGrant)
		if !ok {
			t.Fatalf("expected UnknownGrant")
		}
		if g.Type != "saml_bearer" {
			t.Fatalf("Type = %q", g.Type)
		}
	})

	t.Run("missing grant_type is unknown with empty value", func(t *testing.T) {
		g, ok := ParseGrantRequest(url.Values{}, "").(UnknownGrant)
		if !ok {
			t.Fatalf("expected UnknownGrant")
		}
		if g.Type != "" {
			t.Fatalf("Type = %q", g.Type)
		}
	})
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		msg  string
		code string
	}{
		{ErrUnknownAccount, "Unknown user", "unknown_account"},
		{ErrAuthenticationFailed, "Login failed", "authentication_failed"},
		{ErrRefreshFailed, "Cannot refresh", "refresh_failed"},
		{ErrUnsupportedGrant, "Cannot process 'authorization_code'", "unsupported_grant"},
		{UnknownGrantError{Type: "saml"}, "Unknown grant type: saml", "unknown_grant"},
	}
	for _, tc := range cases {
		msg, code, ok := FailureMessage(tc.err)
		if !ok {
			t.Fatalf("%v not recognized as grant failure", tc.err)
		}
		if msg != tc.msg || code != tc.code {
			t.Fatalf("FailureMessage(%v) = (%q, %q)", tc.err, msg, code)
		}
	}

	if _, _, ok := FailureMessage(errMarker); ok {
		t.Fatalf("internal fault must not read as a grant failure")
	}
}

var errMarker = &markerError{}

type markerError struct{}

func (*markerError) Error() string { return "boom" }
