package accounts

import (
	"context"
	"strings"
	"time"

	"apollo/cmd/security/password"
	"apollo/cmd/security/token"
)

// maxMintAttempts bounds the regenerate-on-collision loop. With 32 random
// bytes per string a collision is not expected in practice; the loop exists
// to honor the uniqueness invariant, not to handle a likely event.
const maxMintAttempts = 3

// Service implements the account/token operations behind the grant protocol.
//
// Minting and refresh are modeled here rather than on the Registry because
// scope and lifetime policy belong with the identity that owns the token;
// the Registry only guarantees storage invariants.
type Service struct {
	cfg   Config
	store Registry
	pw    password.Config
}

// NewService constructs a Service over the given registry with the given
// lifetime policy and credential-verification configuration.
func NewService(cfg Config, store Registry, pw password.Config) *Service {
	return &Service{cfg: cfg, store: store, pw: pw}
}

// Registry exposes the underlying registry (for lookups by the API layer).
func (s *Service) Registry() Registry { return s.store }

// CreateAccount hashes the supplied secret and registers a new account.
// The plain secret never leaves this call.
func (s *Service) CreateAccount(ctx context.Context, username, plainPassword string, now time.Time) (Account, error) {
	hash, err := s.pw.Hash(plainPassword)
	if err != nil {
		return Account{}, err
	}
	return s.store.CreateAccount(ctx, CreateAccountInput{
		Username:     username,
		PasswordHash: hash,
		Now:          now,
	})
}

// Authenticate resolves an account by username and verifies the supplied
// secret against its stored hash.
//
// Outcomes: the account on success; ErrNotFound when the username does not
// resolve; ErrBadCredentials when the secret does not match. The secret is
// never logged or echoed.
func (s *Service) Authenticate(ctx context.Context, username, suppliedSecret string) (Account, error) {
	const op = "accounts.Authenticate"

	acct, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return Account{}, err
	}

	ok, err := s.pw.Verify(acct.PasswordHash, suppliedSecret)
	if err != nil {
		// A malformed stored hash must read as a failed login, not a fault
		// surfaced to the caller.
		return Account{}, OpError{Op: op, Kind: ErrBadCredentials, Msg: "unverifiable credential"}
	}
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrBadCredentials}
	}

	return acct, nil
}

// IssueInput describes one token issuance.
type IssueInput struct {
	// Scope defaults to ScopeOwner when empty.
	Scope string

	// SessionKey is recorded verbatim on the token (may be empty).
	SessionKey string

	// ExpiresAt overrides the default lifetime when non-zero; domain
	// association flows use this for their long horizons.
	ExpiresAt time.Time

	// Now defaults to time.Now().UTC() when zero.
	Now time.Time
}

// IssueAccessToken mints a fresh access/refresh pair for acct and appends it
// to the account's token set. Issuance is all-or-nothing: on any failure no
// partial token is observable.
func (s *Service) IssueAccessToken(ctx context.Context, acct Account, in IssueInput) (AuthToken, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	scope := strings.TrimSpace(in.Scope)
	if scope == "" {
		scope = ScopeOwner
	}

	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.cfg.AccessTokenTTL)
	}

	var lastErr error
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		access, refresh, err := s.mintPair()
		if err != nil {
			return AuthToken{}, err
		}

		tok := AuthToken{
			AccessToken:  access,
			RefreshToken: refresh,
			Scope:        scope,
			AccountID:    acct.ID,
			SessionKey:   in.SessionKey,
			CreatedAt:    now,
			ExpiresAt:    expiresAt,
		}

		err = s.store.InsertToken(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if !IsConflict(err) {
			return AuthToken{}, err
		}
		lastErr = err
	}
	return AuthToken{}, lastErr
}

// RefreshAccessToken exchanges a live refresh token for a new pair carrying
// the same scope. The superseded access string stops authenticating the
// moment the rotation commits. Missing, expired, and already-superseded
// refresh tokens return ErrNotActive with no mutation.
func (s *Service) RefreshAccessToken(ctx context.Context, acct Account, refreshToken string, now time.Time) (AuthToken, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	refreshToken = strings.TrimSpace(refreshToken)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshToken == "" || len(refreshToken) > 4096 {
		return AuthToken{}, notActiveRotate()
	}

	var lastErr error
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		access, refresh, err := s.mintPair()
		if err != nil {
			return AuthToken{}, err
		}

		succ := TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    now.Add(s.cfg.AccessTokenTTL),
		}

		tok, err := s.store.RotateToken(ctx, acct.ID, refreshToken, succ, now)
		if err == nil {
			return tok, nil
		}
		if !IsConflict(err) {
			return AuthToken{}, err
		}
		lastErr = err
	}
	return AuthToken{}, lastErr
}

// mintPair returns fresh access and refresh strings. The refresh string is
// prefixed to keep the two namespaces disjoint even at equal entropy.
func (s *Service) mintPair() (access string, refresh string, err error) {
	access, err = token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return "", "", err
	}
	r, err := token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return "", "", err
	}
	return access, "r-" + r, nil
}
