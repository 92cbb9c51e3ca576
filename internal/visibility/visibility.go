// Package visibility maps a record's visibility tier to the symmetric key
// that protects it.
//
//   - public: one app-wide key stretched from a fixed seed and salt. Cached.
//   - protected: a key stretched from the record address and a caller password,
//     so one password yields a different key at every address.
//   - private: no local key at all; such records go through the wallet proxy.
package visibility

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/firecat-notes/firecat/internal/cryptox"
	"github.com/firecat-notes/firecat/internal/uri"
)

type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

const (
	PublicSeed = "firecat-notes-public-encryption-v1"
	PublicSalt = "firecat-notes-public-salt-v1"

	PublicIterations    = 100000
	ProtectedIterations = 50000
)

var (
	ErrMissingPassword   = errors.New("password required for protected visibility")
	ErrPrivateVisibility = errors.New("private visibility must go through the wallet proxy")
	ErrUnknown           = errors.New("unknown visibility")
)

// Parse accepts the long names and the short codes pub, pro and pvt.
func Parse(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "pub":
		return Public, nil
	case "protected", "pro":
		return Protected, nil
	case "private", "pvt":
		return Private, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, s)
}

// Code returns the three-letter code.
func (v Visibility) Code() string {
	switch v {
	case Public:
		return "pub"
	case Protected:
		return "pro"
	case Private:
		return "pvt"
	}
	return ""
}

func (v Visibility) Valid() bool {
	return v == Public || v == Protected || v == Private
}

// KeyCache holds derived keys for the lifetime of a session or process.
// Only the public key is cached; protected keys depend on a password and are
// derived per call.
type KeyCache struct {
	mu     sync.Mutex
	public []byte
}

func NewKeyCache() *KeyCache { return &KeyCache{} }

// Reset forgets every cached key.
func (c *KeyCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.public = nil
}

type Policy struct {
	cache     *KeyCache
	publicIt  int
	protectIt int
}

type Option func(*Policy)

// WithIterations overrides the stretching cost. Only tests lower it.
func WithIterations(public, protected int) Option {
	return func(p *Policy) {
		p.publicIt = public
		p.protectIt = protected
	}
}

// NewPolicy returns a Policy storing derived keys in cache. A nil cache
// gets a private one.
func NewPolicy(cache *KeyCache, opts ...Option) *Policy {
	if cache == nil {
		cache = NewKeyCache()
	}
	p := &Policy{cache: cache, publicIt: PublicIterations, protectIt: ProtectedIterations}
	for _, o := range opts {
		o(p)
	}
	return p
}

// KeyFor returns the symmetric key for a record at addr. The returned slice
// is owned by the caller.
func (p *Policy) KeyFor(ctx context.Context, v Visibility, addr uri.Address, password string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch v {
	case Public:
		return p.publicKey(), nil
	case Protected:
		if password == "" {
			return nil, ErrMissingPassword
		}
		return cryptox.DeriveKey([]byte(addr.String()), []byte(password), p.protectIt), nil
	case Private:
		return nil, ErrPrivateVisibility
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, string(v))
}

func (p *Policy) publicKey() []byte {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()

	if p.cache.public == nil {
		p.cache.public = cryptox.DeriveKey([]byte(PublicSeed), []byte(PublicSalt), p.publicIt)
	}
	return append([]byte(nil), p.cache.public...)
}
