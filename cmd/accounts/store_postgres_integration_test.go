package accounts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"apollo/cmd/accounts/ids"
)

// Integration tests are opt-in and require APOLLO_TEST_DATABASE_URL.
// Unreachable Postgres skips these tests to keep local runs fast.

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("APOLLO_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: APOLLO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse APOLLO_TEST_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}
	c.Release()

	return pool
}

func mustTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "apollo_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA "`+schema+`"`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA "`+schema+`" CASCADE`)
	})

	ddl := fmt.Sprintf(`
CREATE TABLE %s.accounts (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  username_norm TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_accounts_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_accounts_username_norm UNIQUE (username_norm)
);

CREATE TABLE %s.tokens (
  access_hash TEXT PRIMARY KEY,
  refresh_hash TEXT NOT NULL,
  account_id TEXT NOT NULL REFERENCES %s.accounts(id) ON DELETE CASCADE,
  scope TEXT NOT NULL DEFAULT 'owner',
  session_key TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL,

  CONSTRAINT chk_tokens_access_hash_len CHECK (char_length(access_hash) = 64),
  CONSTRAINT chk_tokens_refresh_hash_len CHECK (char_length(refresh_hash) = 64),
  CONSTRAINT uq_tokens_refresh_hash UNIQUE (refresh_hash)
);
`, schema, schema, schema)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return schema
}

func TestPostgresRegistry_AccountAndTokenRoundTrip(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	schema := mustTestSchema(t, pool)

	reg, err := NewPostgresRegistry(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresRegistry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	now := time.Now().UTC()

	acct, err := reg.CreateAccount(ctx, CreateAccountInput{
		Username:     "Alice",
		PasswordHash: "stored-hash",
		Now:          now,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// Case-insensitive conflict.
	if _, err := reg.CreateAccount(ctx, CreateAccountInput{
		Username:     "aLiCe",
		PasswordHash: "stored-hash",
		Now:          now,
	}); !IsConflict(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}

	tok := AuthToken{
		AccessToken:  "pg-access-1",
		RefreshToken: "r-pg-1",
		Scope:        ScopeOwner,
		AccountID:    acct.ID,
		SessionKey:   "sender;alice",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := reg.InsertToken(ctx, tok); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	got, gotTok, err := reg.FindByAccessToken(ctx, "pg-access-1", now)
	if err != nil {
		t.Fatalf("FindByAccessToken: %v", err)
	}
	if got.ID != acct.ID || gotTok.Scope != ScopeOwner {
		t.Fatalf("resolved wrong account/token")
	}

	// Expired lookup misses.
	if _, _, err := reg.FindByAccessToken(ctx, "pg-access-1", now.Add(2*time.Hour)); !IsNotFound(err) {
		t.Fatalf("expected not-found past expiry, got %v", err)
	}
}

func TestPostgresRegistry_RotateToken(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	schema := mustTestSchema(t, pool)

	reg, err := NewPostgresRegistry(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresRegistry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	now := time.Now().UTC()

	acct, err := reg.CreateAccount(ctx, CreateAccountInput{
		Username:     "alice",
		PasswordHash: "stored-hash",
		Now:          now,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	old := AuthToken{
		AccessToken:  "pg-access-old",
		RefreshToken: "r-pg-old",
		Scope:        ScopeDomain,
		AccountID:    acct.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if err := reg.InsertToken(ctx, old); err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	succ := TokenPair{
		AccessToken:  "pg-access-new",
		RefreshToken: "r-pg-new",
		ExpiresAt:    now.Add(time.Hour),
	}
	next, err := reg.RotateToken(ctx, acct.ID, "r-pg-old", succ, now)
	if err != nil {
		t.Fatalf("RotateToken: %v", err)
	}
	if next.Scope != ScopeDomain {
		t.Fatalf("scope not carried over: %q", next.Scope)
	}

	if _, _, err := reg.FindByAccessToken(ctx, "pg-access-old", now); !IsNotFound(err) {
		t.Fatalf("superseded token still resolves: %v", err)
	}
	if _, _, err := reg.FindByAccessToken(ctx, "pg-access-new", now); err != nil {
		t.Fatalf("successor token does not resolve: %v", err)
	}

	// Stale refresh fails and leaves the set alone.
	succ2 := TokenPair{AccessToken: "pg-x", RefreshToken: "r-pg-x", ExpiresAt: now.Add(time.Hour)}
	if _, err := reg.RotateToken(ctx, acct.ID, "r-pg-old", succ2, now); !IsNotActive(err) {
		t.Fatalf("expected not-active for stale refresh, got %v", err)
	}
	n, err := reg.TokenCount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 token, got %d", n)
	}
}
