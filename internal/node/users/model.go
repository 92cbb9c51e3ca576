package users

import "time"

// User is a wallet account. Salt and Verifier come from the password;
// SealedKey is the account's Ed25519 private key sealed under the node key.
type User struct {
	ID        string
	AppKey    string
	UserName  string
	Salt      []byte
	Verifier  []byte
	Pubkey    string
	SealedKey []byte
	KeyNonce  []byte
	CreatedAt time.Time
}
