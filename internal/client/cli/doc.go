// Package cli provides the interactive Firecat Notes command-line client.
//
// Build wires configuration, the local session database, the node
// transports, the access layer and the domain services. App serves a REPL
// on top of them. Typical flow: restore the saved session, then run user
// commands until quit.
//
// Key features:
//   - Signup / Login / Logout against the wallet
//   - Notebooks: create, show, edit, delete, discover public ones
//   - Posts and reactions inside a notebook
//   - The private user profile
//
// Protected notebooks prompt for their password once per run.
package cli
