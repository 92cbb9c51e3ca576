package grpcapi

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node/auth"
	"github.com/firecat-notes/firecat/internal/wire"
)

type ctxKey string

const subjectKey ctxKey = "subject"

// sessionMethods need a valid bearer session.
var sessionMethods = map[string]bool{
	wire.RPCPWrite: true,
	wire.RPCPRead:  true,
}

func subjectFrom(ctx context.Context) (auth.Subject, bool) {
	sub, ok := ctx.Value(subjectKey).(auth.Subject)
	return sub, ok
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "panic in handler", "panic", p, "method", info.FullMethod)
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// correlationInterceptor adopts the caller's correlation id or mints one,
// and echoes it in the response header.
func (s *Server) correlationInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := strings.TrimSpace(incoming(ctx, common.CorrelationIDHeader))
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.CorrelationIDHeader, id))
	return handler(logging.WithCorrelationID(ctx, id), req)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Info(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func (s *Server) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.limiter != nil && !s.limiter.Allow(peerHost(ctx)) {
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return handler(ctx, req)
}

// accessTokenInterceptor rejects session methods without a valid bearer
// token and stores the session subject in the context.
func (s *Server) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !sessionMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token, ok := bearerToken(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	sub, err := s.wallet.Authenticate(token)
	if err != nil {
		return nil, s.fail(ctx, info.FullMethod, err)
	}
	return handler(context.WithValue(ctx, subjectKey, sub), req)
}

func incoming(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func bearerToken(ctx context.Context) (string, bool) {
	token, ok := strings.CutPrefix(incoming(ctx, common.AuthorizationHeader), common.BearerPrefix)
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
