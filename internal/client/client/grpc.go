package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/wire"
)

// Dial opens a plaintext gRPC connection to a node. Messages use the JSON
// codec from the wire package. A positive timeout bounds every call that
// has no earlier deadline.
func Dial(addr string, timeout time.Duration) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
		grpc.WithUnaryInterceptor(timeoutInterceptor(timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func timeoutInterceptor(timeout time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

type grpcTransport struct {
	conn grpc.ClientConnInterface
	log  logging.Logger
}

func newGRPCTransport(conn grpc.ClientConnInterface, log logging.Logger) *grpcTransport {
	return &grpcTransport{conn: conn, log: log}
}

// outgoing attaches the bearer token and correlation id as metadata.
func outgoing(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AuthorizationHeader)
	if token != "" {
		md.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	if cid, ok := logging.CorrelationID(ctx); ok {
		md.Set(common.CorrelationIDHeader, cid)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (t *grpcTransport) roundTrip(ctx context.Context, ep endpoint, token string, in, out any) error {
	if in == nil {
		in = &wire.PingRequest{}
	}
	if out == nil {
		out = &wire.Status{}
	}

	err := t.conn.Invoke(outgoing(ctx, token), ep.rpc, in, out, grpc.CallContentSubtype(wire.CodecName))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Debug(ctx, "rpc failed", "method", ep.rpc, "error", err)
		return mapCode(err)
	}
	return nil
}
