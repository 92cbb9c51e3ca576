package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// Write encrypts data for opts.Visibility, signs the ciphertext with id and
// stores it at addr.
//
// Contract:
//   - private visibility is rejected with ErrPrivateVisibility; use WritePrivate.
//   - protected visibility without a password fails with ErrMissingPassword.
//   - a store or transport failure is logged and reported as (false, nil).
func (l *Layer) Write(ctx context.Context, addr uri.Address, data any, id identity.Identity, opts Options) (bool, error) {
	if opts.Visibility == visibility.Private {
		return false, ErrPrivateVisibility
	}

	payload, err := l.gw.Encrypt(ctx, data, opts.Visibility, addr, opts.Password)
	if err != nil {
		return false, err
	}

	env, err := identity.Sign(payload, id)
	if err != nil {
		return false, fmt.Errorf("sign %s: %w", addr, err)
	}

	if err := l.store.Write(ctx, addr, env); err != nil {
		l.log.Error(ctx, "store write failed", "uri", addr.String(), "visibility", string(opts.Visibility), "error", err)
		return false, nil
	}

	l.log.Debug(ctx, "record written", "uri", addr.String(), "visibility", string(opts.Visibility))
	return true, nil
}

// WritePrivate stores data through the wallet proxy, which encrypts it under
// the signed-in user's key. Placeholders in t resolve to the session pubkey.
//
// Contract:
//   - without a session it fails with ErrNotAuthenticated.
//   - a wallet or transport failure is logged and reported as (false, nil).
func (l *Layer) WritePrivate(ctx context.Context, t uri.Template, data any) (bool, error) {
	if !l.Authenticated() {
		return false, ErrNotAuthenticated
	}
	addr, err := l.Resolve(t)
	if err != nil {
		return false, err
	}

	if err := l.wallet.ProxyWrite(ctx, addr, data, true); err != nil {
		if errors.Is(err, client.ErrNoSession) {
			return false, ErrNotAuthenticated
		}
		l.log.Error(ctx, "proxy write failed", "uri", addr.String(), "error", err)
		return false, nil
	}

	l.log.Debug(ctx, "private record written", "uri", addr.String())
	return true, nil
}

// Delete removes the record at addr. When id is given, a delete proof signed
// by id is attached so the store can check ownership; otherwise the store
// relies on the wallet session, if any.
//
// A store or transport failure is logged and reported as (false, nil).
func (l *Layer) Delete(ctx context.Context, addr uri.Address, id *identity.Identity) (bool, error) {
	var proof *identity.Envelope
	if id != nil {
		env, err := identity.Sign(wire.DeleteProof{Op: wire.OpDelete, URI: addr.String(), Ts: l.now()}, *id)
		if err != nil {
			return false, fmt.Errorf("sign delete %s: %w", addr, err)
		}
		proof = &env
	}

	if err := l.store.Delete(ctx, addr, proof); err != nil {
		l.log.Error(ctx, "store delete failed", "uri", addr.String(), "error", err)
		return false, nil
	}
	return true, nil
}
