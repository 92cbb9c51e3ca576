package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/firecat-notes/firecat/internal/wire"
)

// endpoint names one node operation on both transports.
type endpoint struct {
	method string
	path   string
	rpc    string
}

var (
	epWrite  = endpoint{http.MethodPost, wire.PathRecords, wire.RPCWrite}
	epRead   = endpoint{http.MethodGet, wire.PathRecords, wire.RPCRead}
	epList   = endpoint{http.MethodGet, wire.PathList, wire.RPCList}
	epDelete = endpoint{http.MethodDelete, wire.PathRecords, wire.RPCDelete}
	epPing   = endpoint{http.MethodGet, wire.PathHealth, wire.RPCPing}
	epSignup = endpoint{http.MethodPost, wire.PathSignup, wire.RPCSignup}
	epLogin  = endpoint{http.MethodPost, wire.PathLogin, wire.RPCLogin}
	epPWrite = endpoint{http.MethodPost, wire.PathPWrite, wire.RPCPWrite}
	epPRead  = endpoint{http.MethodPost, wire.PathPRead, wire.RPCPRead}
)

// transport carries one request to the node and decodes the reply into out.
// Failures come back as the sentinels in errors.go.
type transport interface {
	roundTrip(ctx context.Context, ep endpoint, token string, in, out any) error
}

// call runs ep on t. A reply with success=false becomes ErrRejected.
func call(ctx context.Context, t transport, ep endpoint, token string, in, out any) error {
	if err := t.roundTrip(ctx, ep, token, in, out); err != nil {
		return err
	}
	if s, ok := out.(interface{ OK() (bool, string) }); ok {
		if success, msg := s.OK(); !success {
			return fmt.Errorf("%w: %s", ErrRejected, msg)
		}
	}
	return nil
}
