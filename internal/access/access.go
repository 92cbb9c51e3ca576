// Package access is the visibility-scoped read/write layer between Firecat
// domain code and the remote record store.
//
// Public and protected records are encrypted locally, signed by the owning
// identity and written straight to the store. Private records never touch a
// local key: they go through the wallet's authenticated proxy, which
// encrypts and decrypts server-side under the user's own key.
package access

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/gateway"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

var (
	// ErrNotAuthenticated is returned by private operations without a
	// wallet session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrTransport wraps store and wallet failures surfaced by Read.
	ErrTransport = errors.New("transport failure")

	ErrDecryptionFailed  = gateway.ErrDecryptionFailed
	ErrMissingPassword   = visibility.ErrMissingPassword
	ErrPrivateVisibility = visibility.ErrPrivateVisibility
)

// Store is the record store contract.
type Store interface {
	Write(ctx context.Context, addr uri.Address, value any) error
	Read(ctx context.Context, addr uri.Address) (*wire.Record, error)
	List(ctx context.Context, addr uri.Address, page, limit int) (*wire.ListResponse, error)
	Delete(ctx context.Context, addr uri.Address, proof *identity.Envelope) error
}

// Wallet is the authenticated proxy contract. Pubkey and Username return ""
// without a live session.
type Wallet interface {
	Pubkey() string
	Username() string
	ProxyWrite(ctx context.Context, addr uri.Address, data any, encrypt bool) error
	ProxyRead(ctx context.Context, addr uri.Address) (json.RawMessage, error)
}

// Options select how a record is protected. Password is only consulted for
// protected visibility.
type Options struct {
	Visibility visibility.Visibility
	Password   string
}

func Public() Options                    { return Options{Visibility: visibility.Public} }
func Protected(password string) Options { return Options{Visibility: visibility.Protected, Password: password} }
func Private() Options                   { return Options{Visibility: visibility.Private} }

type ListOptions struct {
	Options
	Page  int
	Limit int
}

type Layer struct {
	store  Store
	wallet Wallet
	gw     *gateway.Gateway
	log    logging.Logger
	now    func() int64
}

// New builds a Layer. keys is normally a *visibility.Policy backed by a
// session-scoped KeyCache.
func New(store Store, wallet Wallet, keys gateway.KeySource, log logging.Logger) *Layer {
	if log == nil {
		log = logging.Nop()
	}
	return &Layer{
		store:  store,
		wallet: wallet,
		gw:     gateway.New(keys),
		log:    log,
		now:    nowMillis,
	}
}

// Authenticated reports whether private operations can run.
func (l *Layer) Authenticated() bool {
	return l.wallet != nil && l.wallet.Pubkey() != ""
}

// SessionPubkey returns the signed-in user's pubkey, or "".
func (l *Layer) SessionPubkey() string {
	if l.wallet == nil {
		return ""
	}
	return l.wallet.Pubkey()
}

// SessionUsername returns the signed-in user's name, or "".
func (l *Layer) SessionUsername() string {
	if l.wallet == nil {
		return ""
	}
	return l.wallet.Username()
}

// Resolve turns t into an address, substituting the session pubkey for the
// placeholder. Templates with a placeholder need a session.
func (l *Layer) Resolve(t uri.Template) (uri.Address, error) {
	if !t.HasPlaceholder() {
		addr, _ := t.Address()
		return addr, nil
	}
	pub := l.SessionPubkey()
	if pub == "" {
		return uri.Address{}, ErrNotAuthenticated
	}
	return t.Resolve(pub)
}

func isNotFound(err error) bool {
	return errors.Is(err, client.ErrNotFound)
}
