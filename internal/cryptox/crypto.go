// Package cryptox holds the symmetric primitives used by Firecat: AES-GCM
// sealing with a fresh nonce per call, PBKDF2 key stretching for visibility
// keys, and argon2id for wallet password verifiers.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
	// KeySize selects AES-256.
	KeySize = 32
)

// ErrDecryptionFailed is returned when a ciphertext does not authenticate
// under the given key, or the nonce is malformed.
var ErrDecryptionFailed = errors.New("decryption failed")

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches a wallet password with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveKey stretches seed with PBKDF2-HMAC-SHA256 into a KeySize key.
func DeriveKey(seed, salt []byte, iterations int) []byte {
	return pbkdf2.Key(seed, salt, iterations, KeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key using a freshly generated
// nonce. The nonce is returned separately and must be stored next to the
// ciphertext.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. Any authentication failure is reported as
// ErrDecryptionFailed.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrDecryptionFailed, len(nonce))
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptEntry serializes entry to JSON and seals it.
//
// Example:
//
//	ciphertext, nonce, err := EncryptEntry(notebook, key)
//	if err != nil {
//	    return err
//	}
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	return Seal(plaintext, key)
}

// DecryptEntry opens ciphertext and unmarshals the JSON plaintext into v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
