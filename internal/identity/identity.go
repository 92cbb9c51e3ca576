// Package identity provides the Ed25519 identities that own Firecat records
// (the app, each notebook, each post, each wallet user) and the signed
// envelope every store write travels in.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrAppIdentityMissing  = errors.New("app identity is not configured")
	ErrAppIdentityMismatch = errors.New("app private key does not match app public key")
	ErrInvalidKey          = errors.New("invalid key")
)

// Identity is a hex-encoded Ed25519 keypair. PrivateKeyHex holds the 32-byte
// seed; the 64-byte expanded form is accepted on input as well.
type Identity struct {
	PublicKeyHex  string `json:"publicKeyHex"`
	PrivateKeyHex string `json:"privateKeyHex"`
}

// Generate creates a fresh keypair from crypto/rand.
func Generate() (Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return Identity{
		PublicKeyHex:  hex.EncodeToString(pub),
		PrivateKeyHex: hex.EncodeToString(priv.Seed()),
	}, nil
}

// FromPrivateKeyHex rebuilds an identity from its private half.
func FromPrivateKeyHex(privHex string) (Identity, error) {
	priv, err := parsePrivateKey(privHex)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		PublicKeyHex:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		PrivateKeyHex: hex.EncodeToString(priv.Seed()),
	}, nil
}

// Validate checks both halves decode and that the private key derives the
// public key.
func (id Identity) Validate() error {
	pub, err := ParsePublicKey(id.PublicKeyHex)
	if err != nil {
		return err
	}
	priv, err := parsePrivateKey(id.PrivateKeyHex)
	if err != nil {
		return err
	}
	if !pub.Equal(priv.Public()) {
		return fmt.Errorf("%w: private key does not derive %s", ErrInvalidKey, short(id.PublicKeyHex))
	}
	return nil
}

// IsZero reports whether id carries no key material.
func (id Identity) IsZero() bool {
	return id.PublicKeyHex == "" && id.PrivateKeyHex == ""
}

func (id Identity) String() string {
	return "identity(" + short(id.PublicKeyHex) + ")"
}

// ParsePublicKey decodes a hex public key.
func ParsePublicKey(pubHex string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not hex: %v", ErrInvalidKey, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key has %d bytes, want %d", ErrInvalidKey, len(b), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(b), nil
}

func parsePrivateKey(privHex string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex: %v", ErrInvalidKey, err)
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("%w: private key has %d bytes", ErrInvalidKey, len(b))
	}
}

func short(pub string) string {
	if len(pub) > 12 {
		return pub[:12]
	}
	return pub
}
