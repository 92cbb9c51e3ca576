package identity

import (
	"errors"
	"fmt"
)

// AppIdentity returns the long-lived application identity from configured
// key material. It is never generated at runtime: an empty key is reported
// as ErrAppIdentityMissing and should stop the process at startup.
func AppIdentity(publicKeyHex, privateKeyHex string) (Identity, error) {
	if publicKeyHex == "" || privateKeyHex == "" {
		return Identity{}, ErrAppIdentityMissing
	}

	id := Identity{PublicKeyHex: publicKeyHex, PrivateKeyHex: privateKeyHex}
	if err := id.Validate(); err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return Identity{}, fmt.Errorf("%w: %v", ErrAppIdentityMismatch, err)
		}
		return Identity{}, err
	}
	return id, nil
}
