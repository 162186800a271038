package accounts

import (
	"context"
	"time"
)

// Scope labels carried by issued tokens. Scopes are pass-through: callers may
// supply any label, these are only the two the directory server itself uses.
const (
	ScopeOwner  = "owner"
	ScopeDomain = "domain"
)

// TokenType is the bearer marker reported on the wire for every access token.
const TokenType = "Bearer"

// Account is Apollo's canonical security principal: one registered metaverse
// identity. PasswordHash is the encoded opaque credential; the plain secret
// is never stored.
type Account struct {
	ID           string
	Username     string
	UsernameNorm string
	PasswordHash string

	CreatedAt time.Time
}

// AuthToken is one issued bearer/refresh credential pair.
//
// AccessToken and RefreshToken are opaque strings, each globally unique
// across all accounts at issuance and drawn from distinct random namespaces.
// A token authenticates iff the current time is before ExpiresAt; expiry is
// checked at use, there is no background sweep.
type AuthToken struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	AccountID    string

	// SessionKey is an opaque caller+identity composite (e.g. sender;username)
	// recorded at issuance to tell concurrent sessions apart. It is not
	// required to be unique and nothing deduplicates on it.
	SessionKey string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid reports whether the token still authenticates at now.
func (t AuthToken) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// ExpiresIn returns the token lifetime in whole seconds, as reported in the
// OAuth response body.
func (t AuthToken) ExpiresIn() int64 {
	return int64(t.ExpiresAt.Sub(t.CreatedAt) / time.Second)
}

// CreateAccountInput describes an account registration.
type CreateAccountInput struct {
	Username     string
	PasswordHash string
	Now          time.Time
}

// TokenPair carries the pre-minted successor strings for a refresh rotation.
// The registry fills in scope and session key from the superseded token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Registry is the account/token persistence boundary.
//
// Implementations must be safe for concurrent use and must make tokens
// visible atomically: a lookup observes a token fully or not at all.
type Registry interface {
	// CreateAccount registers a new account. Username uniqueness is
	// case-insensitive and enforced here.
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)

	// FindByUsername resolves an account by username for the password grant.
	// A miss is a normal negative result (NotFoundError), not a fault.
	FindByUsername(ctx context.Context, username string) (Account, error)

	// FindByAccessToken resolves the account whose token set contains a live
	// token with the given access string, returning both. Expired tokens
	// behave as absent.
	FindByAccessToken(ctx context.Context, accessToken string, now time.Time) (Account, AuthToken, error)

	// InsertToken appends a fully built token to its account's set,
	// enforcing global access/refresh uniqueness.
	InsertToken(ctx context.Context, tok AuthToken) error

	// RotateToken atomically supersedes the account's live token matching
	// refreshToken with succ: the old pair stops authenticating and the new
	// pair (carrying the old token's scope) becomes visible in one step.
	// Missing, expired, or mismatched refresh tokens all return ErrNotActive
	// with no mutation.
	RotateToken(ctx context.Context, accountID string, refreshToken string, succ TokenPair, now time.Time) (AuthToken, error)

	// TokenCount reports the number of stored tokens for an account,
	// including expired ones that have not been superseded.
	TokenCount(ctx context.Context, accountID string) (int, error)
}
