// Package uri models Firecat storage addresses.
//
// An Address is fully resolved and safe to send to the store. A Template may
// contain the ":key" placeholder segment standing for the signed-in user's
// pubkey; it becomes an Address only through Resolve.
package uri

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Placeholder is the path segment replaced by the session pubkey.
	Placeholder = ":key"

	SchemeMutable   = "mutable"
	SchemeImmutable = "immutable"

	// DomainAccounts is the only domain this client writes to.
	DomainAccounts = "accounts"
)

var (
	ErrInvalid    = errors.New("invalid address")
	ErrUnresolved = errors.New("address contains an unresolved placeholder")
	ErrNoPubkey   = errors.New("cannot resolve placeholder without a pubkey")
)

// Address is a resolved "scheme://domain/path" location.
type Address struct {
	scheme string
	domain string
	path   string // without leading slash
}

// Template is an address that may still contain Placeholder segments.
type Template struct {
	addr Address
}

// Parse parses a resolved address. Strings holding the placeholder are
// rejected with ErrUnresolved; use ParseTemplate for those.
func Parse(s string) (Address, error) {
	a, err := parse(s)
	if err != nil {
		return Address{}, err
	}
	if hasPlaceholder(a.path) {
		return Address{}, fmt.Errorf("%w: %s", ErrUnresolved, s)
	}
	return a, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseTemplate parses an address that may contain the placeholder.
func ParseTemplate(s string) (Template, error) {
	a, err := parse(s)
	if err != nil {
		return Template{}, err
	}
	return Template{addr: a}, nil
}

func parse(s string) (Address, error) {
	s = normalize(strings.TrimSpace(s))

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return Address{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalid, s)
	}
	if scheme != SchemeMutable && scheme != SchemeImmutable {
		return Address{}, fmt.Errorf("%w: unknown scheme %q", ErrInvalid, scheme)
	}

	domain, path, _ := strings.Cut(rest, "/")
	if domain == "" {
		return Address{}, fmt.Errorf("%w: missing domain in %q", ErrInvalid, s)
	}

	path = strings.Trim(path, "/")
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return Address{}, fmt.Errorf("%w: relative segment in %q", ErrInvalid, s)
		}
	}
	if strings.Contains(path, "//") {
		return Address{}, fmt.Errorf("%w: empty segment in %q", ErrInvalid, s)
	}

	return Address{scheme: scheme, domain: domain, path: path}, nil
}

// normalize repairs the "accounts:///" form some stores return in list
// entries.
func normalize(s string) string {
	return strings.Replace(s, DomainAccounts+":///", DomainAccounts+"/", 1)
}

func hasPlaceholder(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == Placeholder {
			return true
		}
	}
	return false
}

func (a Address) Scheme() string { return a.scheme }
func (a Address) Domain() string { return a.domain }
func (a Address) Path() string   { return a.path }

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool { return a.scheme == "" }

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	if a.path == "" {
		return a.scheme + "://" + a.domain
	}
	return a.scheme + "://" + a.domain + "/" + a.path
}

// Account returns the owning pubkey of an accounts-domain address.
func (a Address) Account() (string, bool) {
	if a.domain != DomainAccounts || a.path == "" {
		return "", false
	}
	acc, _, _ := strings.Cut(a.path, "/")
	return acc, true
}

// Child appends path segments.
func (a Address) Child(segments ...string) Address {
	parts := make([]string, 0, len(segments)+1)
	if a.path != "" {
		parts = append(parts, a.path)
	}
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return Address{scheme: a.scheme, domain: a.domain, path: strings.Join(parts, "/")}
}

// Parent returns the containing address, or a itself at the domain root.
func (a Address) Parent() Address {
	i := strings.LastIndexByte(a.path, '/')
	if i < 0 {
		return Address{scheme: a.scheme, domain: a.domain}
	}
	return Address{scheme: a.scheme, domain: a.domain, path: a.path[:i]}
}

// Base returns the last path segment.
func (a Address) Base() string {
	i := strings.LastIndexByte(a.path, '/')
	return a.path[i+1:]
}

// Template lifts a resolved address into a Template.
func (a Address) Template() Template { return Template{addr: a} }

func (t Template) String() string { return t.addr.String() }

// HasPlaceholder reports whether Resolve needs a pubkey.
func (t Template) HasPlaceholder() bool { return hasPlaceholder(t.addr.path) }

// Resolve replaces every placeholder segment with pubkey. A template
// without placeholders resolves to itself and ignores pubkey.
func (t Template) Resolve(pubkey string) (Address, error) {
	if !t.HasPlaceholder() {
		return t.addr, nil
	}
	if pubkey == "" || strings.Contains(pubkey, "/") {
		return Address{}, fmt.Errorf("%w: %s", ErrNoPubkey, t)
	}

	segs := strings.Split(t.addr.path, "/")
	for i, s := range segs {
		if s == Placeholder {
			segs[i] = pubkey
		}
	}
	return Address{scheme: t.addr.scheme, domain: t.addr.domain, path: strings.Join(segs, "/")}, nil
}

// Address returns the resolved address when the template holds no
// placeholder.
func (t Template) Address() (Address, bool) {
	if t.HasPlaceholder() {
		return Address{}, false
	}
	return t.addr, true
}
