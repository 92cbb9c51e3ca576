package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBadSignature = errors.New("signature verification failed")
	ErrUnsigned     = errors.New("envelope carries no signature")
)

// AuthEntry is one signer of an envelope.
type AuthEntry struct {
	Pubkey    string `json:"pubkey"`
	Signature string `json:"signature"`
}

// Envelope wraps a payload with the signature of its author. The signature
// covers the compact JSON encoding of Payload.
type Envelope struct {
	Auth    []AuthEntry     `json:"auth"`
	Payload json.RawMessage `json:"payload"`
}

// Sign marshals payload to JSON and signs it with id. Ed25519 is
// deterministic, so identical payloads signed by the same key yield identical
// envelopes.
func Sign(payload any, id Identity) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	raw, err = compact(raw)
	if err != nil {
		return Envelope{}, err
	}

	priv, err := parsePrivateKey(id.PrivateKeyHex)
	if err != nil {
		return Envelope{}, err
	}

	sig := ed25519.Sign(priv, raw)
	return Envelope{
		Auth:    []AuthEntry{{Pubkey: id.PublicKeyHex, Signature: hex.EncodeToString(sig)}},
		Payload: raw,
	}, nil
}

// Verify checks every signature in env against the payload bytes.
func Verify(env Envelope) error {
	if len(env.Auth) == 0 {
		return ErrUnsigned
	}
	raw, err := compact(env.Payload)
	if err != nil {
		return err
	}
	for _, a := range env.Auth {
		pub, err := ParsePublicKey(a.Pubkey)
		if err != nil {
			return err
		}
		sig, err := hex.DecodeString(a.Signature)
		if err != nil {
			return fmt.Errorf("%w: signature is not hex", ErrBadSignature)
		}
		if !ed25519.Verify(pub, raw, sig) {
			return fmt.Errorf("%w: signer %s", ErrBadSignature, short(a.Pubkey))
		}
	}
	return nil
}

// SignedBy reports whether pubkey is among the envelope signers. It does not
// verify signatures.
func (e Envelope) SignedBy(pubkey string) bool {
	for _, a := range e.Auth {
		if a.Pubkey == pubkey {
			return true
		}
	}
	return false
}

// Unwrap returns the payload of a signed envelope, or raw unchanged when raw
// is not envelope-shaped.
func Unwrap(raw json.RawMessage) (json.RawMessage, bool) {
	env, ok := AsEnvelope(raw)
	if !ok {
		return raw, false
	}
	return env.Payload, true
}

// AsEnvelope decodes raw as an envelope. Only objects with both a non-empty
// auth list and a payload qualify.
func AsEnvelope(raw json.RawMessage) (Envelope, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, false
	}
	if len(env.Auth) == 0 || len(env.Payload) == 0 {
		return Envelope{}, false
	}
	return env, true
}

func compact(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("compact payload: %w", err)
	}
	return buf.Bytes(), nil
}
