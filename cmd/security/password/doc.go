// Package password is Apollo's credential-verification capability.
//
// It implements Argon2id hashing with a PHC-style encoded string format:
// configurable cost parameters (via environment variables), length policy,
// and strict hash decoding with anti-DoS bounds during verification.
//
// Callers treat this package as opaque: they hold encoded hash strings and
// ask Verify whether a supplied secret matches. Plain secrets are never
// stored or logged.
package password
