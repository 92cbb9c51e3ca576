// Package wire defines the JSON bodies exchanged between the Firecat client
// and a store/wallet node, over HTTP or gRPC.
package wire

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/firecat-notes/firecat/internal/identity"
)

const (
	PathRecords = "/api/v1/records"
	PathList    = "/api/v1/list"
	PathSignup  = "/api/v1/auth/signup"
	PathLogin   = "/api/v1/auth/login"
	PathPWrite  = "/api/v1/proxy/write"
	PathPRead   = "/api/v1/proxy/read"
	PathHealth  = "/healthz"

	EntryFile      = "file"
	EntryDirectory = "directory"

	DefaultLimit = 50
	MaxLimit     = 500
)

// Record is a stored value with the node's write timestamp (unix ms).
type Record struct {
	Data json.RawMessage `json:"data"`
	Ts   int64           `json:"ts"`
}

// Entry describes one child of a listed container.
type Entry struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Status is embedded by every response.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK reports the success flag and the server message.
func (s Status) OK() (bool, string) { return s.Success, s.Error }

type WriteRequest struct {
	URI   string          `json:"uri"`
	Value json.RawMessage `json:"value"`
}

// ReadRequest and ListRequest travel as query parameters over HTTP.
type ReadRequest struct {
	URI string `json:"uri"`
}

func (r ReadRequest) Query() url.Values { return url.Values{"uri": {r.URI}} }

type ListRequest struct {
	URI   string `json:"uri"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (r ListRequest) Query() url.Values {
	q := url.Values{"uri": {r.URI}}
	if r.Page > 0 {
		q.Set("page", strconv.Itoa(r.Page))
	}
	if r.Limit > 0 {
		q.Set("limit", strconv.Itoa(r.Limit))
	}
	return q
}

type ReadResponse struct {
	Status
	Record *Record `json:"record,omitempty"`
}

type ListResponse struct {
	Status
	Data       []Entry    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// DeleteRequest optionally proves ownership of the deleted address. The
// proof payload is DeleteProof signed by the account key.
type DeleteRequest struct {
	URI   string             `json:"uri,omitempty"`
	Proof *identity.Envelope `json:"proof,omitempty"`
}

func (r DeleteRequest) Query() url.Values { return url.Values{"uri": {r.URI}} }

type PingRequest struct{}

// OpDelete is the only operation a DeleteProof may name.
const OpDelete = "delete"

type DeleteProof struct {
	Op  string `json:"op"`
	URI string `json:"uri"`
	Ts  int64  `json:"ts"`
}

type Session struct {
	Username  string `json:"username"`
	Pubkey    string `json:"pubkey"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type SignupRequest struct {
	AppKey   string `json:"appKey"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	AppKey     string `json:"appKey"`
	SessionKey string `json:"sessionKey"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type AuthResponse struct {
	Status
	Session *Session `json:"session,omitempty"`
}

type ProxyWriteRequest struct {
	URI     string          `json:"uri"`
	Data    json.RawMessage `json:"data"`
	Encrypt bool            `json:"encrypt"`
}

type ProxyReadRequest struct {
	URI string `json:"uri"`
}

type ProxyReadResponse struct {
	Status
	Record    *Record         `json:"record,omitempty"`
	Decrypted json.RawMessage `json:"decrypted,omitempty"`
}
