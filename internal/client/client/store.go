package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/grpc"

	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/wire"
)

// TokenSource supplies the current session token, or "" when there is none.
type TokenSource interface {
	Token() string
}

// StoreClient talks to the record store over HTTP or gRPC.
type StoreClient struct {
	t      transport
	tokens TokenSource
}

// NewStoreClient returns a client for the store at baseURL. tokens may be
// nil; when set, its token is attached to deletes so a user can remove
// records under their own account without a signed proof.
func NewStoreClient(baseURL string, hc *http.Client, tokens TokenSource, log logging.Logger) *StoreClient {
	if log == nil {
		log = logging.Nop()
	}
	return &StoreClient{t: newHTTPTransport(baseURL, hc, log), tokens: tokens}
}

// NewGRPCStoreClient is NewStoreClient over a gRPC connection, see Dial.
func NewGRPCStoreClient(conn grpc.ClientConnInterface, tokens TokenSource, log logging.Logger) *StoreClient {
	if log == nil {
		log = logging.Nop()
	}
	return &StoreClient{t: newGRPCTransport(conn, log), tokens: tokens}
}

func (c *StoreClient) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// Write stores value at addr. value is usually a signed envelope.
func (c *StoreClient) Write(ctx context.Context, addr uri.Address, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	var resp wire.Status
	if err := call(ctx, c.t, epWrite, "", wire.WriteRequest{URI: addr.String(), Value: raw}, &resp); err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	return nil
}

// Read fetches the record at addr. A missing record is ErrNotFound.
func (c *StoreClient) Read(ctx context.Context, addr uri.Address) (*wire.Record, error) {
	var resp wire.ReadResponse
	if err := call(ctx, c.t, epRead, "", wire.ReadRequest{URI: addr.String()}, &resp); err != nil {
		return nil, fmt.Errorf("read %s: %w", addr, err)
	}
	if resp.Record == nil {
		return nil, fmt.Errorf("read %s: %w", addr, ErrNotFound)
	}
	return resp.Record, nil
}

// List returns one page of child entries under addr. page starts at 1; zero
// values use the server defaults.
func (c *StoreClient) List(ctx context.Context, addr uri.Address, page, limit int) (*wire.ListResponse, error) {
	var resp wire.ListResponse
	req := wire.ListRequest{URI: addr.String(), Page: page, Limit: limit}
	if err := call(ctx, c.t, epList, "", req, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", addr, err)
	}
	return &resp, nil
}

// Delete removes the record at addr. proof, when non-nil, is a DeleteProof
// signed by the account key.
func (c *StoreClient) Delete(ctx context.Context, addr uri.Address, proof *identity.Envelope) error {
	var resp wire.Status
	req := wire.DeleteRequest{URI: addr.String(), Proof: proof}
	if err := call(ctx, c.t, epDelete, c.token(), req, &resp); err != nil {
		return fmt.Errorf("delete %s: %w", addr, err)
	}
	return nil
}

// Ping checks the node's health.
func (c *StoreClient) Ping(ctx context.Context) error {
	return call(ctx, c.t, epPing, "", nil, nil)
}
