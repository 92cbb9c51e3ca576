package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/firecat-notes/firecat/internal/wire"
)

type storeServer interface {
	Write(context.Context, *wire.WriteRequest) (*wire.Status, error)
	Read(context.Context, *wire.ReadRequest) (*wire.ReadResponse, error)
	List(context.Context, *wire.ListRequest) (*wire.ListResponse, error)
	Delete(context.Context, *wire.DeleteRequest) (*wire.Status, error)
	Ping(context.Context, *wire.PingRequest) (*wire.Status, error)
}

type walletServer interface {
	Signup(context.Context, *wire.SignupRequest) (*wire.AuthResponse, error)
	Login(context.Context, *wire.LoginRequest) (*wire.AuthResponse, error)
	ProxyWrite(context.Context, *wire.ProxyWriteRequest) (*wire.Status, error)
	ProxyRead(context.Context, *wire.ProxyReadRequest) (*wire.ProxyReadResponse, error)
}

var storeServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.StoreService,
	HandlerType: (*storeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(wire.StoreService, "Write", (*Server).Write),
		unary(wire.StoreService, "Read", (*Server).Read),
		unary(wire.StoreService, "List", (*Server).List),
		unary(wire.StoreService, "Delete", (*Server).Delete),
		unary(wire.StoreService, "Ping", (*Server).Ping),
	},
	Streams: []grpc.StreamDesc{},
}

var walletServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.WalletService,
	HandlerType: (*walletServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(wire.WalletService, "Signup", (*Server).Signup),
		unary(wire.WalletService, "Login", (*Server).Login),
		unary(wire.WalletService, "ProxyWrite", (*Server).ProxyWrite),
		unary(wire.WalletService, "ProxyRead", (*Server).ProxyRead),
	},
	Streams: []grpc.StreamDesc{},
}

// unary is the handler protoc would generate for one method, with the
// request decoded by the JSON codec.
func unary[Req, Resp any](service, method string, fn func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
