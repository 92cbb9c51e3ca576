package config

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/identity"
)

// AppKeys is the application identity shared by every Firecat client. It
// signs the public discovery index.
type AppKeys struct {
	PublicKey  string `koanf:"public_key" validate:"omitempty,hexadecimal,len=64"`
	PrivateKey string `koanf:"private_key" validate:"omitempty,hexadecimal"`
}

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ClientConfig holds runtime settings for the firecat CLI. With the grpc
// transport both the store and the wallet are reached at GRPCAddr.
type ClientConfig struct {
	Transport string        `koanf:"transport" validate:"oneof=http grpc"`
	StoreURL  string        `koanf:"store_url" validate:"required,url"`
	WalletURL string        `koanf:"wallet_url" validate:"required,url"`
	GRPCAddr  string        `koanf:"grpc_addr" validate:"omitempty,host_port"`
	AppKey    string        `koanf:"app_key" validate:"required"`
	App       AppKeys       `koanf:"app"`
	DataDir   string        `koanf:"data_dir" validate:"required"`
	Log       LogConfig     `koanf:"log"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

var DefaultClientConfig = ClientConfig{
	Transport: TransportHTTP,
	StoreURL:  "http://127.0.0.1:8842",
	WalletURL: "http://127.0.0.1:8842",
	GRPCAddr:  "127.0.0.1:8843",
	AppKey:    common.AppKey,
	DataDir:   ".firecat",
	Log:       LogConfig{Level: "warn", Format: "text"},
	Timeout:   15 * time.Second,
}

var ErrGRPCAddrMissing = errors.New("grpc_addr is required for the grpc transport")

// BindClientFlags defines the client flags on fs. Secrets are not exposed
// as flags; set them in the environment or the config file.
func BindClientFlags(fs *pflag.FlagSet) {
	d := DefaultClientConfig
	fs.String(ConfigFlag, "", "path to a JSON config file")
	fs.String("transport", d.Transport, "node transport (http, grpc)")
	fs.String("store-url", d.StoreURL, "record store base URL")
	fs.String("wallet-url", d.WalletURL, "wallet service base URL")
	fs.String("grpc-addr", d.GRPCAddr, "node gRPC address")
	fs.String("data-dir", d.DataDir, "directory for the local session database")
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log.format", d.Log.Format, "log format (text, json)")
	fs.Duration("timeout", d.Timeout, "request timeout")
}

// LoadClient merges defaults, file, environment and the parsed fs.
func LoadClient(fs *pflag.FlagSet) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := load(fs, DefaultClientConfig, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	var errs []error
	if err := validate(c); err != nil {
		errs = append(errs, err)
	}
	if c.Transport == TransportGRPC && c.GRPCAddr == "" {
		errs = append(errs, ErrGRPCAddrMissing)
	}
	return errors.Join(errs...)
}

// SessionDSN is the SQLite DSN of the local session database.
func (c *ClientConfig) SessionDSN() string {
	return "file:" + filepath.Join(c.DataDir, "session.db") + "?_pragma=busy_timeout(5000)"
}

// AppIdentity returns the configured application identity. A missing key
// yields identity.ErrAppIdentityMissing.
func (c *ClientConfig) AppIdentity() (identity.Identity, error) {
	return identity.AppIdentity(c.App.PublicKey, c.App.PrivateKey)
}
