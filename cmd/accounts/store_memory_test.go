package accounts

import (
	"context"
	"testing"
	"time"
)

func mustCreateAccount(t *testing.T, r Registry, username string) Account {
	t.Helper()

	acct, err := r.CreateAccount(context.Background(), CreateAccountInput{
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$0123456789abcdef0123456789abcdef",
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account %q: %v", username, err)
	}
	return acct
}

func TestMemoryRegistry_CreateAccount_ConflictCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	mustCreateAccount(t, r, "Alice")

	_, err := r.CreateAccount(context.Background(), CreateAccountInput{
		Username:     "aLiCe",
		PasswordHash: "hash",
	})
	if !IsConflict(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestMemoryRegistry_FindByUsername(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	created := mustCreateAccount(t, r, "Alice")

	got, err := r.FindByUsername(context.Background(), "ALICE")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("resolved wrong account: %q != %q", got.ID, created.ID)
	}

	_, err = r.FindByUsername(context.Background(), "nobody")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found for unknown username, got %v", err)
	}
}

func TestMemoryRegistry_FindByAccessToken_ExpiredBehavesAbsent(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	acct := mustCreateAccount(t, r, "alice")
	now := time.Now().UTC()

	tok := AuthToken{
		AccessToken:  "live-token",
		RefreshToken: "r-live",
		Scope:        ScopeOwner,
		AccountID:    acct.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := r.InsertToken(context.Background(), tok); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	got, gotTok, err := r.FindByAccessToken(context.Background(), "live-token", now)
	if err != nil {
		t.Fatalf("FindByAccessToken: %v", err)
	}
	if got.ID != acct.ID || gotTok.AccessToken != "live-token" {
		t.Fatalf("resolved wrong account/token")
	}

	// Past expiry the same lookup is a plain miss.
	_, _, err = r.FindByAccessToken(context.Background(), "live-token", now.Add(2*time.Hour))
	if !IsNotFound(err) {
		t.Fatalf("expected not-found for expired token, got %v", err)
	}
}

func TestMemoryRegistry_InsertToken_UniquenessAcrossAccounts(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	a := mustCreateAccount(t, r, "alice")
	b := mustCreateAccount(t, r, "bob")
	now := time.Now().UTC()

	tok := AuthToken{
		AccessToken:  "dup-access",
		RefreshToken: "r-dup",
		AccountID:    a.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := r.InsertToken(context.Background(), tok); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	tok.AccountID = b.ID
	if err := r.InsertToken(context.Background(), tok); !IsConflict(err) {
		t.Fatalf("expected conflict for duplicate token strings, got %v", err)
	}
}

func TestMemoryRegistry_RotateToken_Supersession(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	acct := mustCreateAccount(t, r, "alice")
	now := time.Now().UTC()

	old := AuthToken{
		AccessToken:  "old-access",
		RefreshToken: "r-old",
		Scope:        ScopeDomain,
		AccountID:    acct.ID,
		SessionKey:   "sender;alice",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := r.InsertToken(context.Background(), old); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	succ := TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "r-new",
		ExpiresAt:    now.Add(time.Hour),
	}
	next, err := r.RotateToken(context.Background(), acct.ID, "r-old", succ, now)
	if err != nil {
		t.Fatalf("RotateToken: %v", err)
	}
	if next.Scope != ScopeDomain {
		t.Fatalf("scope not carried over: %q", next.Scope)
	}
	if next.SessionKey != "sender;alice" {
		t.Fatalf("session key not carried over: %q", next.SessionKey)
	}

	// Old access string no longer authenticates; new one does.
	if _, _, err := r.FindByAccessToken(context.Background(), "old-access", now); !IsNotFound(err) {
		t.Fatalf("superseded access token still resolves: %v", err)
	}
	if _, _, err := r.FindByAccessToken(context.Background(), "new-access", now); err != nil {
		t.Fatalf("successor access token does not resolve: %v", err)
	}

	// Set size is unchanged by a rotation.
	n, err := r.TokenCount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 token after rotation, got %d", n)
	}
}

func TestMemoryRegistry_RotateToken_StaleRefresh(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	acct := mustCreateAccount(t, r, "alice")
	now := time.Now().UTC()

	old := AuthToken{
		AccessToken:  "old-access",
		RefreshToken: "r-old",
		AccountID:    acct.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := r.InsertToken(context.Background(), old); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	succ := TokenPair{AccessToken: "new-access", RefreshToken: "r-new", ExpiresAt: now.Add(time.Hour)}
	if _, err := r.RotateToken(context.Background(), acct.ID, "r-old", succ, now); err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Presenting the already-superseded refresh token again must fail
	// without touching the live set.
	succ2 := TokenPair{AccessToken: "x-access", RefreshToken: "r-x", ExpiresAt: now.Add(time.Hour)}
	if _, err := r.RotateToken(context.Background(), acct.ID, "r-old", succ2, now); !IsNotActive(err) {
		t.Fatalf("expected not-active for stale refresh, got %v", err)
	}
	if _, _, err := r.FindByAccessToken(context.Background(), "new-access", now); err != nil {
		t.Fatalf("live token disturbed by failed rotation: %v", err)
	}
}

func TestMemoryRegistry_RotateToken_ExpiredToken(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	acct := mustCreateAccount(t, r, "alice")
	now := time.Now().UTC()

	old := AuthToken{
		AccessToken:  "old-access",
		RefreshToken: "r-old",
		AccountID:    acct.ID,
		CreatedAt:    now.Add(-2 * time.Hour),
		ExpiresAt:    now.Add(-time.Hour),
	}
	if err := r.InsertToken(context.Background(), old); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	succ := TokenPair{AccessToken: "new-access", RefreshToken: "r-new", ExpiresAt: now.Add(time.Hour)}
	if _, err := r.RotateToken(context.Background(), acct.ID, "r-old", succ, now); !IsNotActive(err) {
		t.Fatalf("expected not-active for expired token, got %v", err)
	}
}
