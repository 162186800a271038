package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apollo/cmd/accounts"
)

// Dispatcher routes parsed grants to the account service and maps the
// service's error kinds onto the grant-protocol failure set.
type Dispatcher struct {
	log     *slog.Logger
	svc     *accounts.Service
	metrics *Metrics
}

// NewDispatcher builds a dispatcher. metrics may be nil.
func NewDispatcher(log *slog.Logger, svc *accounts.Service, metrics *Metrics) *Dispatcher {
	return &Dispatcher{log: log, svc: svc, metrics: metrics}
}

// Dispatch executes one grant. sender identifies the remote caller and
// becomes half of the session key on password grants. Failures from the
// grant protocol carry their wire message; anything else is an internal
// fault the caller must not forward verbatim.
func (d *Dispatcher) Dispatch(ctx context.Context, req GrantRequest, sender string, now time.Time) (accounts.AuthToken, error) {
	tok, err := d.dispatch(ctx, req, sender, now)
	if err != nil {
		if _, code, ok := FailureMessage(err); ok {
			d.metrics.observe(req.grantType(), code)
		} else {
			d.metrics.observe(req.grantType(), "internal_error")
		}
		return accounts.AuthToken{}, err
	}

	d.metrics.observe(req.grantType(), "ok")
	return tok, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req GrantRequest, sender string, now time.Time) (accounts.AuthToken, error) {
	switch g := req.(type) {
	case PasswordGrant:
		return d.passwordGrant(ctx, g, sender, now)
	case RefreshGrant:
		return d.refreshGrant(ctx, g, now)
	case AuthorizationCodeGrant:
		d.log.Info("refusing authorization_code grant", "sender", sender)
		return accounts.AuthToken{}, ErrUnsupportedGrant
	case UnknownGrant:
		d.log.Info("unknown grant type", "grant_type", g.Type, "sender", sender)
		return accounts.AuthToken{}, UnknownGrantError{Type: g.Type}
	default:
		return accounts.AuthToken{}, fmt.Errorf("oauth: unhandled grant request %T", req)
	}
}

func (d *Dispatcher) passwordGrant(ctx context.Context, g PasswordGrant, sender string, now time.Time) (accounts.AuthToken, error) {
	acct, err := d.svc.Authenticate(ctx, g.Username, g.Password)
	switch {
	case accounts.IsNotFound(err):
		d.log.Info("password grant for unknown account", "username", accounts.NormalizeUsername(g.Username), "sender", sender)
		return accounts.AuthToken{}, ErrUnknownAccount
	case accounts.IsBadCredentials(err):
		d.log.Info("password grant rejected", "username", accounts.NormalizeUsername(g.Username), "sender", sender)
		return accounts.AuthToken{}, ErrAuthenticationFailed
	case err != nil:
		return accounts.AuthToken{}, fmt.Errorf("authenticate: %w", err)
	}

	tok, err := d.svc.IssueAccessToken(ctx, acct, accounts.IssueInput{
		Scope:      g.Scope,
		SessionKey: sender + ";" + acct.UsernameNorm,
		Now:        now,
	})
	if err != nil {
		return accounts.AuthToken{}, fmt.Errorf("issue token: %w", err)
	}

	d.log.Info("password grant issued", "account_id", acct.ID, "scope", tok.Scope)
	return tok, nil
}

func (d *Dispatcher) refreshGrant(ctx context.Context, g RefreshGrant, now time.Time) (accounts.AuthToken, error) {
	acct, _, err := d.svc.Registry().FindByAccessToken(ctx, g.CallerToken, now)
	switch {
	case accounts.IsNotFound(err):
		d.log.Info("refresh grant with unresolved bearer token")
		return accounts.AuthToken{}, ErrUnknownAccount
	case err != nil:
		return accounts.AuthToken{}, fmt.Errorf("resolve caller: %w", err)
	}

	tok, err := d.svc.RefreshAccessToken(ctx, acct, g.RefreshToken, now)
	switch {
	case accounts.IsNotActive(err):
		d.log.Info("refresh grant rejected", "account_id", acct.ID)
		return accounts.AuthToken{}, ErrRefreshFailed
	case err != nil:
		return accounts.AuthToken{}, fmt.Errorf("refresh token: %w", err)
	}

	d.log.Info("refresh grant rotated", "account_id", acct.ID, "scope", tok.Scope)
	return tok, nil
}
