package grpcapi

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/cryptox"
	"github.com/firecat-notes/firecat/internal/wire"
)

// toStatus picks the gRPC code for a service error and the message the
// client sees. Unexpected errors are reported as internal.
func toStatus(err error) *status.Status {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.New(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.New(codes.NotFound, "not found")
	case errors.Is(err, common.ErrAlreadyExists):
		return status.New(codes.AlreadyExists, err.Error())
	case errors.Is(err, cryptox.ErrDecryptionFailed):
		return status.New(codes.FailedPrecondition, err.Error())
	default:
		return status.New(codes.Internal, "internal error")
	}
}

func (s *Server) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if st.Code() == codes.Internal {
		s.logger.Error(ctx, "rpc failed", "method", method, "error", err)
	} else {
		s.logger.Debug(ctx, "rpc rejected", "method", method, "code", st.Code().String(), "error", err)
	}
	return st.Err()
}

func (s *Server) Write(ctx context.Context, req *wire.WriteRequest) (*wire.Status, error) {
	if err := s.records.Write(ctx, req.URI, req.Value); err != nil {
		return nil, s.fail(ctx, wire.RPCWrite, err)
	}
	return &wire.Status{Success: true}, nil
}

func (s *Server) Read(ctx context.Context, req *wire.ReadRequest) (*wire.ReadResponse, error) {
	rec, err := s.records.Read(ctx, req.URI)
	if err != nil {
		return nil, s.fail(ctx, wire.RPCRead, err)
	}
	return &wire.ReadResponse{Status: wire.Status{Success: true}, Record: rec}, nil
}

func (s *Server) List(ctx context.Context, req *wire.ListRequest) (*wire.ListResponse, error) {
	if req.Page < 0 || req.Limit < 0 {
		err := fmt.Errorf("%w: negative page or limit", common.ErrInvalidRequest)
		return nil, s.fail(ctx, wire.RPCList, err)
	}
	entries, p, err := s.records.List(ctx, req.URI, req.Page, req.Limit)
	if err != nil {
		return nil, s.fail(ctx, wire.RPCList, err)
	}
	return &wire.ListResponse{Status: wire.Status{Success: true}, Data: entries, Pagination: p}, nil
}

// Delete accepts a signed proof, a bearer session, or both. A bearer token
// that does not verify is rejected outright.
func (s *Server) Delete(ctx context.Context, req *wire.DeleteRequest) (*wire.Status, error) {
	var sessionPubkey string
	if token, ok := bearerToken(ctx); ok {
		sub, err := s.wallet.Authenticate(token)
		if err != nil {
			return nil, s.fail(ctx, wire.RPCDelete, err)
		}
		sessionPubkey = sub.Pubkey
	}

	if err := s.records.Delete(ctx, req.URI, req.Proof, sessionPubkey); err != nil {
		return nil, s.fail(ctx, wire.RPCDelete, err)
	}
	return &wire.Status{Success: true}, nil
}

func (s *Server) Ping(ctx context.Context, _ *wire.PingRequest) (*wire.Status, error) {
	if err := s.records.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		return nil, status.Error(codes.Unavailable, "unavailable")
	}
	return &wire.Status{Success: true}, nil
}

func (s *Server) Signup(ctx context.Context, req *wire.SignupRequest) (*wire.AuthResponse, error) {
	sess, err := s.wallet.Signup(ctx, *req)
	if err != nil {
		return nil, s.fail(ctx, wire.RPCSignup, err)
	}
	return &wire.AuthResponse{Status: wire.Status{Success: true}, Session: sess}, nil
}

func (s *Server) Login(ctx context.Context, req *wire.LoginRequest) (*wire.AuthResponse, error) {
	sess, err := s.wallet.Login(ctx, *req)
	if err != nil {
		return nil, s.fail(ctx, wire.RPCLogin, err)
	}
	return &wire.AuthResponse{Status: wire.Status{Success: true}, Session: sess}, nil
}

func (s *Server) ProxyWrite(ctx context.Context, req *wire.ProxyWriteRequest) (*wire.Status, error) {
	sub, ok := subjectFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if err := s.wallet.ProxyWrite(ctx, sub, *req); err != nil {
		return nil, s.fail(ctx, wire.RPCPWrite, err)
	}
	return &wire.Status{Success: true}, nil
}

func (s *Server) ProxyRead(ctx context.Context, req *wire.ProxyReadRequest) (*wire.ProxyReadResponse, error) {
	sub, ok := subjectFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	rec, plain, err := s.wallet.ProxyRead(ctx, sub, *req)
	if err != nil {
		return nil, s.fail(ctx, wire.RPCPRead, err)
	}
	return &wire.ProxyReadResponse{Status: wire.Status{Success: true}, Record: rec, Decrypted: plain}, nil
}
