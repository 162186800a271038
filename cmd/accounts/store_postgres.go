package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"apollo/cmd/accounts/ids"
	"apollo/cmd/security/token"
)

// PostgresRegistry implements the Registry over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this registry must NOT close it.
// - Access and refresh strings are hashed before storage (HMAC-SHA256 when
//   APOLLO_TOKEN_HMAC_KEY is set, SHA-256 otherwise); lookups hash the
//   presented string, so the plain-token contract of Registry is unchanged.
// - RotateToken is fully atomic, serialized via SELECT ... FOR UPDATE on the
//   token row.
// - The schema name is validated as a legal PostgreSQL identifier before it
//   is interpolated into statements.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the registry.
type PostgresOption func(*PostgresRegistry) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the registry (default "apollo").
func WithSchema(schema string) PostgresOption {
	return func(r *PostgresRegistry) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("accounts: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("accounts: invalid schema identifier")
		}
		r.schema = schema
		return nil
	}
}

// NewPostgresRegistry constructs a PostgresRegistry with secure defaults.
// Schema management is external; this registry never runs migrations.
func NewPostgresRegistry(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRegistry, error) {
	reg := &PostgresRegistry{
		pool:   pool,
		schema: "apollo",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(reg); err != nil {
			return nil, err
		}
	}
	if reg.pool == nil {
		return nil, fmt.Errorf("accounts: nil pool")
	}
	return reg, nil
}

// CreateAccount registers a new account row.
func (r *PostgresRegistry) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "accounts.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Account{}, err
	}
	norm := NormalizeUsername(username)

	_, err = r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.accounts (id, username, username_norm, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.schema), id, username, norm, in.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ConflictError{Op: op, Field: "username"}
		}
		return Account{}, err
	}

	return Account{
		ID:           id,
		Username:     username,
		UsernameNorm: norm,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}, nil
}

// FindByUsername resolves an account by (case-insensitive) username.
func (r *PostgresRegistry) FindByUsername(ctx context.Context, username string) (Account, error) {
	const op = "accounts.FindByUsername"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	var acct Account
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, username, username_norm, password_hash, created_at
		FROM %s.accounts
		WHERE username_norm = $1
	`, r.schema), NormalizeUsername(username)).Scan(
		&acct.ID,
		&acct.Username,
		&acct.UsernameNorm,
		&acct.PasswordHash,
		&acct.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

// FindByAccessToken resolves the account owning a live token with the given
// access string.
func (r *PostgresRegistry) FindByAccessToken(ctx context.Context, accessToken string, now time.Time) (Account, AuthToken, error) {
	const op = "accounts.FindByAccessToken"

	if err := ctx.Err(); err != nil {
		return Account{}, AuthToken{}, err
	}
	if accessToken == "" {
		return Account{}, AuthToken{}, NotFoundError{Op: op, Resource: "token"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		acct Account
		tok  AuthToken
	)
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			a.id, a.username, a.username_norm, a.password_hash, a.created_at,
			t.scope, t.session_key, t.created_at, t.expires_at
		FROM %s.tokens t
		JOIN %s.accounts a ON a.id = t.account_id
		WHERE t.access_hash = $1
		  AND t.expires_at > $2
	`, r.schema, r.schema), token.HashTokenHex(accessToken), now).Scan(
		&acct.ID,
		&acct.Username,
		&acct.UsernameNorm,
		&acct.PasswordHash,
		&acct.CreatedAt,
		&tok.Scope,
		&tok.SessionKey,
		&tok.CreatedAt,
		&tok.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, AuthToken{}, NotFoundError{Op: op, Resource: "token"}
	}
	if err != nil {
		return Account{}, AuthToken{}, err
	}

	// The presented plain string is the only copy; rows hold hashes.
	tok.AccessToken = accessToken
	tok.AccountID = acct.ID
	return acct, tok, nil
}

// InsertToken stores a token row with hashed access/refresh strings.
func (r *PostgresRegistry) InsertToken(ctx context.Context, tok AuthToken) error {
	const op = "accounts.InsertToken"

	if err := ctx.Err(); err != nil {
		return err
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.AccountID == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "incomplete token"}
	}

	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.tokens (
			access_hash, refresh_hash, account_id,
			scope, session_key, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.schema),
		token.HashTokenHex(tok.AccessToken),
		token.HashTokenHex(tok.RefreshToken),
		tok.AccountID,
		tok.Scope,
		tok.SessionKey,
		tok.CreatedAt,
		tok.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ConflictError{Op: op, Field: "token"}
		}
		if isForeignKeyViolation(err) {
			return NotFoundError{Op: op, Resource: "account"}
		}
		return err
	}
	return nil
}

// RotateToken supersedes a live token inside one transaction. The old row is
// locked, deleted, and replaced; no window exists where both pairs are live.
func (r *PostgresRegistry) RotateToken(ctx context.Context, accountID string, refreshToken string, succ TokenPair, now time.Time) (AuthToken, error) {
	const op = "accounts.RotateToken"

	if err := ctx.Err(); err != nil {
		return AuthToken{}, err
	}
	if succ.AccessToken == "" || succ.RefreshToken == "" {
		return AuthToken{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "incomplete successor pair"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AuthToken{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		accessHash string
		scope      string
		sessionKey string
		expiresAt  time.Time
	)
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT access_hash, scope, session_key, expires_at
		FROM %s.tokens
		WHERE refresh_hash = $1
		  AND account_id = $2
		FOR UPDATE
	`, r.schema), token.HashTokenHex(refreshToken), accountID).Scan(
		&accessHash,
		&scope,
		&sessionKey,
		&expiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthToken{}, notActiveRotate()
	}
	if err != nil {
		return AuthToken{}, err
	}
	if !expiresAt.After(now) {
		return AuthToken{}, notActiveRotate()
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s.tokens WHERE access_hash = $1
	`, r.schema), accessHash); err != nil {
		return AuthToken{}, err
	}

	next := AuthToken{
		AccessToken:  succ.AccessToken,
		RefreshToken: succ.RefreshToken,
		Scope:        scope,
		AccountID:    accountID,
		SessionKey:   sessionKey,
		CreatedAt:    now,
		ExpiresAt:    succ.ExpiresAt,
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.tokens (
			access_hash, refresh_hash, account_id,
			scope, session_key, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.schema),
		token.HashTokenHex(next.AccessToken),
		token.HashTokenHex(next.RefreshToken),
		next.AccountID,
		next.Scope,
		next.SessionKey,
		next.CreatedAt,
		next.ExpiresAt,
	); err != nil {
		if isUniqueViolation(err) {
			return AuthToken{}, ConflictError{Op: op, Field: "token"}
		}
		return AuthToken{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AuthToken{}, err
	}
	return next, nil
}

// TokenCount reports the number of stored token rows for an account.
func (r *PostgresRegistry) TokenCount(ctx context.Context, accountID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT count(*) FROM %s.tokens WHERE account_id = $1
	`, r.schema), accountID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
