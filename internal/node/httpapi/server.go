// Package httpapi exposes the node's record store and wallet as JSON over
// HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node/auth"
	"github.com/firecat-notes/firecat/internal/node/ratelimit"
	"github.com/firecat-notes/firecat/internal/wire"
)

type Records interface {
	Write(ctx context.Context, uri string, value json.RawMessage) error
	Read(ctx context.Context, uri string) (*wire.Record, error)
	List(ctx context.Context, uri string, page, limit int) ([]wire.Entry, wire.Pagination, error)
	Delete(ctx context.Context, uri string, proof *identity.Envelope, sessionPubkey string) error
	Ping(ctx context.Context) error
}

type Wallet interface {
	Signup(ctx context.Context, req wire.SignupRequest) (*wire.Session, error)
	Login(ctx context.Context, req wire.LoginRequest) (*wire.Session, error)
	Authenticate(token string) (auth.Subject, error)
	ProxyWrite(ctx context.Context, sub auth.Subject, req wire.ProxyWriteRequest) error
	ProxyRead(ctx context.Context, sub auth.Subject, req wire.ProxyReadRequest) (*wire.Record, json.RawMessage, error)
}

// Options tune the middleware. A zero RPS disables rate limiting and a zero
// MaxBodyBytes leaves request bodies unbounded.
type Options struct {
	RPS          float64
	Burst        int
	MaxBodyBytes int64
}

type Server struct {
	records Records
	wallet  Wallet
	logger  logging.Logger
	opts    Options
	limiter *ratelimit.Limiter
}

func NewServer(records Records, wallet Wallet, l logging.Logger, opts Options) *Server {
	if l == nil {
		l = logging.Nop()
	}
	s := &Server{
		records: records,
		wallet:  wallet,
		logger:  l.With("module", "http_api"),
		opts:    opts,
	}
	if opts.RPS > 0 {
		s.limiter = ratelimit.New(opts.RPS, opts.Burst)
	}
	return s
}

// Routes builds the router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.correlationMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.limitRequestBodyMiddleware)

	r.Get(wire.PathHealth, s.health)

	r.Post(wire.PathRecords, s.writeRecord)
	r.Get(wire.PathRecords, s.readRecord)
	r.Delete(wire.PathRecords, s.deleteRecord)
	r.Get(wire.PathList, s.list)

	r.Post(wire.PathSignup, s.signup)
	r.Post(wire.PathLogin, s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post(wire.PathPWrite, s.proxyWrite)
		r.Post(wire.PathPRead, s.proxyRead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, wire.Status{Error: "no such endpoint"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, wire.Status{Error: "method not allowed"})
	})

	return r
}
