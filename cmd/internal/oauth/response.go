package oauth

import "apollo/cmd/accounts"

// TokenBody is the flat success shape of /oauth/token.
type TokenBody struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// NewTokenBody renders an issued token in the flat OAuth shape.
func NewTokenBody(tok accounts.AuthToken) TokenBody {
	return TokenBody{
		AccessToken:  tok.AccessToken,
		TokenType:    accounts.TokenType,
		ExpiresIn:    tok.ExpiresIn(),
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scope,
		CreatedAt:    tok.CreatedAt.Unix(),
	}
}

// TokenErrorBody is the error shape of /oauth/token.
type TokenErrorBody struct {
	Error string `json:"error"`
}

// Envelope is the status-wrapped shape of /api/v1/token/new.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// DomainTokenData is the payload of a successful /api/v1/token/new call.
type DomainTokenData struct {
	DomainToken            string `json:"domain_token"`
	TokenExpirationSeconds int64  `json:"token_expiration_seconds"`
	AccountName            string `json:"account_name"`
}

// SuccessEnvelope wraps data in the success envelope.
func SuccessEnvelope(data any) Envelope {
	return Envelope{Status: "success", Data: data}
}

// FailureEnvelope is the body returned when the caller cannot be resolved.
func FailureEnvelope() Envelope {
	return Envelope{Status: "fail"}
}
