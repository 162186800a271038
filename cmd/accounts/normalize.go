package accounts

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// The policy is fixed at account creation: trim + lower-case. Additional
// rules (unicode confusables) can be added later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
