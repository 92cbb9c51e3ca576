// Package gateway encrypts record payloads for public and protected
// visibility and decrypts them on the way back.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/cryptox"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
)

// ErrDecryptionFailed means the payload did not authenticate under the key
// derived for it: wrong password, wrong address or corrupted data.
var ErrDecryptionFailed = cryptox.ErrDecryptionFailed

// EncryptedPayload is the stored form of an encrypted record.
type EncryptedPayload struct {
	Encrypted  bool                  `json:"_encrypted"`
	Visibility visibility.Visibility `json:"_visibility"`
	Data       string                `json:"data"`
	Nonce      string                `json:"nonce"`
}

// KeySource supplies symmetric keys. *visibility.Policy implements it.
type KeySource interface {
	KeyFor(ctx context.Context, v visibility.Visibility, addr uri.Address, password string) ([]byte, error)
}

type Gateway struct {
	keys KeySource
}

func New(keys KeySource) *Gateway {
	return &Gateway{keys: keys}
}

// Encrypt marshals data to JSON and seals it under the key for (v, addr,
// password). Every call uses a fresh nonce.
func (g *Gateway) Encrypt(ctx context.Context, data any, v visibility.Visibility, addr uri.Address, password string) (EncryptedPayload, error) {
	key, err := g.keys.KeyFor(ctx, v, addr, password)
	if err != nil {
		return EncryptedPayload{}, err
	}
	defer common.WipeByteArray(key)

	ct, nonce, err := cryptox.EncryptEntry(data, key)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("encrypt %s: %w", addr, err)
	}

	return EncryptedPayload{
		Encrypted:  true,
		Visibility: v,
		Data:       base64.StdEncoding.EncodeToString(ct),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Decrypt derives the key from the visibility recorded in p and returns the
// plaintext JSON.
func (g *Gateway) Decrypt(ctx context.Context, p EncryptedPayload, addr uri.Address, password string) (json.RawMessage, error) {
	key, err := g.keys.KeyFor(ctx, p.Visibility, addr, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ct, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data is not base64", ErrDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce is not base64", ErrDecryptionFailed)
	}

	pt, err := cryptox.Open(ct, nonce, key)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if !json.Valid(pt) {
		return nil, fmt.Errorf("%w: plaintext is not JSON", ErrDecryptionFailed)
	}
	return pt, nil
}

// IsEncrypted reports whether raw carries the encrypted-payload marker.
func IsEncrypted(raw json.RawMessage) (EncryptedPayload, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return EncryptedPayload{}, false
	}
	var p EncryptedPayload
	if err := json.Unmarshal(trimmed, &p); err != nil || !p.Encrypted {
		return EncryptedPayload{}, false
	}
	return p, true
}
