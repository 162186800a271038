// Package accounts is the account and access-token core of the Apollo
// metaverse directory server.
//
// It owns the Account and AuthToken entities, the Registry boundary that maps
// usernames and live bearer tokens to accounts, and the Service that mints
// and rotates tokens under the configured lifetime policy.
//
// Two Registry implementations exist: a mutex-guarded in-memory registry
// (default) and a PostgreSQL registry that stores token hashes at rest.
package accounts
