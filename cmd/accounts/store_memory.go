package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"apollo/cmd/accounts/ids"
)

// MemoryRegistry is the default Registry when no database is configured.
//
// All state lives behind one mutex: account records, each account's token
// set, and the global access/refresh indexes. Rotation is a single critical
// section, so two concurrent refreshes of the same token have exactly one
// winner and a token is never observable half-inserted.
type MemoryRegistry struct {
	mu        sync.RWMutex
	accounts  map[string]*memAccount // account ID -> record
	byName    map[string]string      // normalized username -> account ID
	byAccess  map[string]string      // access token -> account ID
	byRefresh map[string]string      // refresh token -> account ID
}

type memAccount struct {
	acct   Account
	tokens []AuthToken
}

// NewMemoryRegistry constructs an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		accounts:  make(map[string]*memAccount),
		byName:    make(map[string]string),
		byAccess:  make(map[string]string),
		byRefresh: make(map[string]string),
	}
}

// CreateAccount registers a new account with a case-insensitively unique username.
func (r *MemoryRegistry) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[norm]; exists {
		return Account{}, ConflictError{Op: op, Field: "username"}
	}

	acct := Account{
		ID:           id,
		Username:     username,
		UsernameNorm: norm,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}
	r.accounts[id] = &memAccount{acct: acct}
	r.byName[norm] = id

	return acct, nil
}

// FindByUsername resolves an account by (case-insensitive) username.
func (r *MemoryRegistry) FindByUsername(ctx context.Context, username string) (Account, error) {
	const op = "accounts.FindByUsername"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[NormalizeUsername(username)]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return r.accounts[id].acct, nil
}

// FindByAccessToken resolves the account owning a live token with the given
// access string. Expired tokens behave as absent.
func (r *MemoryRegistry) FindByAccessToken(ctx context.Context, accessToken string, now time.Time) (Account, AuthToken, error) {
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

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAccess[accessToken]
	if !ok {
		return Account{}, AuthToken{}, NotFoundError{Op: op, Resource: "token"}
	}

	rec := r.accounts[id]
	for _, tok := range rec.tokens {
		if tok.AccessToken == accessToken {
			if !tok.Valid(now) {
				return Account{}, AuthToken{}, NotFoundError{Op: op, Resource: "token"}
			}
			return rec.acct, tok, nil
		}
	}
	return Account{}, AuthToken{}, NotFoundError{Op: op, Resource: "token"}
}

// InsertToken appends a token to its account's set, enforcing global
// uniqueness of both the access and refresh strings.
func (r *MemoryRegistry) InsertToken(ctx context.Context, tok AuthToken) error {
	const op = "accounts.InsertToken"

	if err := ctx.Err(); err != nil {
		return err
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.AccountID == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "incomplete token"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[tok.AccountID]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	if _, dup := r.byAccess[tok.AccessToken]; dup {
		return ConflictError{Op: op, Field: "access_token"}
	}
	if _, dup := r.byRefresh[tok.RefreshToken]; dup {
		return ConflictError{Op: op, Field: "refresh_token"}
	}

	rec.tokens = append(rec.tokens, tok)
	r.byAccess[tok.AccessToken] = tok.AccountID
	r.byRefresh[tok.RefreshToken] = tok.AccountID

	return nil
}

// RotateToken supersedes the account's live token matching refreshToken with
// succ under one lock: remove-old plus insert-new is never observable as two
// steps.
func (r *MemoryRegistry) RotateToken(ctx context.Context, accountID string, refreshToken string, succ TokenPair, now time.Time) (AuthToken, error) {
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

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[accountID]
	if !ok {
		return AuthToken{}, notActiveRotate()
	}

	idx := -1
	for i, tok := range rec.tokens {
		if tok.RefreshToken == refreshToken {
			idx = i
			break
		}
	}
	if idx < 0 || !rec.tokens[idx].Valid(now) {
		return AuthToken{}, notActiveRotate()
	}

	if _, dup := r.byAccess[succ.AccessToken]; dup {
		return AuthToken{}, ConflictError{Op: op, Field: "access_token"}
	}
	if _, dup := r.byRefresh[succ.RefreshToken]; dup {
		return AuthToken{}, ConflictError{Op: op, Field: "refresh_token"}
	}

	old := rec.tokens[idx]
	next := AuthToken{
		AccessToken:  succ.AccessToken,
		RefreshToken: succ.RefreshToken,
		Scope:        old.Scope,
		AccountID:    accountID,
		SessionKey:   old.SessionKey,
		CreatedAt:    now,
		ExpiresAt:    succ.ExpiresAt,
	}

	delete(r.byAccess, old.AccessToken)
	delete(r.byRefresh, old.RefreshToken)
	rec.tokens[idx] = next
	r.byAccess[next.AccessToken] = accountID
	r.byRefresh[next.RefreshToken] = accountID

	return next, nil
}

// TokenCount reports the size of an account's stored token set.
func (r *MemoryRegistry) TokenCount(ctx context.Context, accountID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.accounts[accountID]
	if !ok {
		return 0, NotFoundError{Op: "accounts.TokenCount", Resource: "account"}
	}
	return len(rec.tokens), nil
}
