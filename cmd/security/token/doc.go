// Package token provides the opaque-token primitives for Apollo.
//
// It is the single source of truth for minting bearer/refresh strings and for
// hashing them before storage.
//
// Behavior:
// - Minting: crypto/rand bytes encoded as unpadded base64url.
// - Default hashing: SHA-256(token) when no HMAC key is configured.
// - Enforced mode: HMAC-SHA256(token, key) when APOLLO_TOKEN_HMAC_KEY is set.
// - Hash output is a stable 64-char hex string.
package token
