// Package grpcapi exposes the node's record store and wallet over gRPC. The
// services are declared by hand and carry the wire types through the JSON
// codec registered by the wire package.
package grpcapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

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

// Options mirror the HTTP API's. A zero RPS disables rate limiting and a
// zero MaxRecvBytes keeps the gRPC default.
type Options struct {
	RPS          float64
	Burst        int
	MaxRecvBytes int
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
		logger:  l.With("module", "grpc_server"),
		opts:    opts,
	}
	if opts.RPS > 0 {
		s.limiter = ratelimit.New(opts.RPS, opts.Burst)
	}
	return s
}

// NewGRPCServer builds a grpc.Server with the interceptor chain and both
// services registered.
func (s *Server) NewGRPCServer() *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			s.recoverInterceptor,
			s.correlationInterceptor,
			s.loggingInterceptor,
			s.rateLimitInterceptor,
			s.accessTokenInterceptor,
		),
	}
	if s.opts.MaxRecvBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.opts.MaxRecvBytes))
	}
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Register adds the store and wallet services to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&storeServiceDesc, s)
	r.RegisterService(&walletServiceDesc, s)
}
