package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/gateway"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
)

// Read fetches and decrypts the record at addr.
//
// Contract:
//   - (nil, nil) when no record exists.
//   - private visibility is served by ReadPrivate.
//   - records in a signed envelope are unwrapped; encrypted payloads are
//     decrypted with the key for their recorded visibility; anything else is
//     legacy plaintext and returned unchanged.
//   - a wrong key yields an error matching ErrDecryptionFailed, a store
//     failure one matching ErrTransport. Neither ever returns plaintext.
//   - a protected record read without a password fails with
//     ErrMissingPassword.
func (l *Layer) Read(ctx context.Context, addr uri.Address, opts Options) (json.RawMessage, error) {
	if opts.Visibility == visibility.Private {
		return l.ReadPrivate(ctx, addr.Template())
	}

	rec, err := l.store.Read(ctx, addr)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	payload, _ := identity.Unwrap(rec.Data)

	enc, ok := gateway.IsEncrypted(payload)
	if !ok {
		l.log.Debug(ctx, "legacy unencrypted record", "uri", addr.String())
		return payload, nil
	}

	if enc.Visibility != opts.Visibility {
		// The stored tag decides the key; a mismatch would fail anyway.
		return nil, fmt.Errorf("%w: record is %s, read as %s", ErrDecryptionFailed, enc.Visibility, opts.Visibility)
	}

	data, err := l.gw.Decrypt(ctx, enc, addr, opts.Password)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadOrNil is Read with every failure other than misuse collapsed into nil,
// for callers that render whatever is readable.
func (l *Layer) ReadOrNil(ctx context.Context, addr uri.Address, opts Options) (json.RawMessage, error) {
	data, err := l.Read(ctx, addr, opts)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, ErrMissingPassword), errors.Is(err, ErrNotAuthenticated):
		return nil, err
	default:
		l.log.Warn(ctx, "read failed", "uri", addr.String(), "error", err)
		return nil, nil
	}
}

// ReadPrivate returns the decrypted record at t through the wallet proxy.
// Placeholders in t resolve to the session pubkey.
//
// Contract:
//   - without a session it fails with ErrNotAuthenticated.
//   - (nil, nil) when no record exists.
func (l *Layer) ReadPrivate(ctx context.Context, t uri.Template) (json.RawMessage, error) {
	if !l.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	addr, err := l.Resolve(t)
	if err != nil {
		return nil, err
	}

	data, err := l.wallet.ProxyRead(ctx, addr)
	switch {
	case err == nil:
		payload, _ := identity.Unwrap(data)
		return payload, nil
	case isNotFound(err):
		return nil, nil
	case errors.Is(err, client.ErrNoSession), errors.Is(err, client.ErrUnauthorized):
		return nil, ErrNotAuthenticated
	default:
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
}

// ReadAs decodes the record at addr into a T. It returns (nil, nil) when no
// record exists.
func ReadAs[T any](ctx context.Context, l *Layer, addr uri.Address, opts Options) (*T, error) {
	raw, err := l.Read(ctx, addr, opts)
	if err != nil || raw == nil {
		return nil, err
	}
	return decode[T](raw, addr.String())
}

// ReadPrivateAs decodes the private record at t into a T.
func ReadPrivateAs[T any](ctx context.Context, l *Layer, t uri.Template) (*T, error) {
	raw, err := l.ReadPrivate(ctx, t)
	if err != nil || raw == nil {
		return nil, err
	}
	return decode[T](raw, t.String())
}

func decode[T any](raw json.RawMessage, where string) (*T, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", where, err)
	}
	return v, nil
}
