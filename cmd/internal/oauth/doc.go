// Package oauth implements the Apollo directory server's token endpoints:
// the OAuth-style grant dispatch on /oauth/token, the domain-token
// provisioning endpoint /api/v1/token/new, and the legacy human-facing
// domain bootstrap flow on /user/tokens/new.
//
// The grant protocol is a closed set of typed request variants; every
// failure is an expected outcome with a fixed wire message, never a fault.
package oauth
