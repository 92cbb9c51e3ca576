package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype under which the wire types are sent
// as JSON.
const CodecName = "json"

const (
	StoreService  = "firecat.v1.Store"
	WalletService = "firecat.v1.Wallet"

	RPCWrite  = "/" + StoreService + "/Write"
	RPCRead   = "/" + StoreService + "/Read"
	RPCList   = "/" + StoreService + "/List"
	RPCDelete = "/" + StoreService + "/Delete"
	RPCPing   = "/" + StoreService + "/Ping"

	RPCSignup = "/" + WalletService + "/Signup"
	RPCLogin  = "/" + WalletService + "/Login"
	RPCPWrite = "/" + WalletService + "/ProxyWrite"
	RPCPRead  = "/" + WalletService + "/ProxyRead"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
