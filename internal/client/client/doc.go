// Package client contains the Firecat client's transports and local state
// bootstrap.
//
// # Overview
//
// The package provides:
//  1. StoreClient, an HTTP client for the key-addressed record store
//     (write, read, list, delete).
//  2. WalletClient, an HTTP client for the wallet service. It performs
//     signup/login, keeps the resulting session, attaches its token to every
//     proxy call, and drops the session when the wallet rejects it.
//  3. InitDatabase and RunMigrations, which open the local SQLite database
//     holding the persisted session and apply embedded goose migrations.
//
// # Error Handling
//
// HTTP failures are mapped to sentinel errors that callers match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound,
// ErrRateLimited, ErrRejected.
//
// Both clients are safe for concurrent use. Every call takes a
// context.Context; request timeouts come from the supplied *http.Client.
package client
