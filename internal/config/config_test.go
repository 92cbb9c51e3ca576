package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firecat-notes/firecat/internal/identity"
)

const (
	testMasterKey = "0123456789abcdef0123456789abcdef"
	testJWTSecret = "fedcba9876543210fedcba9876543210"
)

func clientFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("firecat", pflag.ContinueOnError)
	BindClientFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func nodeFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("firecat-node", pflag.ContinueOnError)
	BindNodeFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func setNodeSecrets(t *testing.T) {
	t.Setenv("FIRECAT_WALLET_MASTER_KEY", testMasterKey)
	t.Setenv("FIRECAT_WALLET_JWT_SECRET", testJWTSecret)
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient(clientFlags(t))
	require.NoError(t, err)
	assert.EqualValues(t, DefaultClientConfig, *cfg)
}

func TestLoadClient_NilFlagSet(t *testing.T) {
	cfg, err := LoadClient(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig.StoreURL, cfg.StoreURL)
}

func TestLoadClient_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firecat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"store_url": "http://file:1",
		"wallet_url": "http://file:2",
		"timeout": "3s",
		"log": {"level": "debug"}
	}`), 0o600))

	t.Setenv("FIRECAT_WALLET_URL", "http://env:2")
	t.Setenv("FIRECAT_LOG_FORMAT", "json")
	t.Setenv("FIRECAT_UNKNOWN_THING", "ignored")

	cfg, err := LoadClient(clientFlags(t, "--config", path, "--log.format", "text", "--timeout", "9s"))
	require.NoError(t, err)

	assert.Equal(t, "http://file:1", cfg.StoreURL)
	assert.Equal(t, "http://env:2", cfg.WalletURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 9*time.Second, cfg.Timeout)
}

func TestLoadClient_GRPCTransport(t *testing.T) {
	cfg, err := LoadClient(clientFlags(t, "--transport", "grpc", "--grpc-addr", "node.local:9443"))
	require.NoError(t, err)
	assert.Equal(t, TransportGRPC, cfg.Transport)
	assert.Equal(t, "node.local:9443", cfg.GRPCAddr)

	t.Setenv("FIRECAT_TRANSPORT", "carrier-pigeon")
	_, err = LoadClient(clientFlags(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transport")
}

func TestClientConfig_GRPCNeedsAddr(t *testing.T) {
	cfg := DefaultClientConfig
	cfg.Transport = TransportGRPC
	cfg.GRPCAddr = ""
	require.ErrorIs(t, cfg.Validate(), ErrGRPCAddrMissing)

	cfg.Transport = TransportHTTP
	require.NoError(t, cfg.Validate())
}

func TestLoadClient_AppIdentityFromEnv(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)
	t.Setenv("FIRECAT_APP_PUBLIC_KEY", id.PublicKeyHex)
	t.Setenv("FIRECAT_APP_PRIVATE_KEY", id.PrivateKeyHex)

	cfg, err := LoadClient(clientFlags(t))
	require.NoError(t, err)

	got, err := cfg.AppIdentity()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestClientConfig_AppIdentityMissing(t *testing.T) {
	cfg := DefaultClientConfig
	_, err := cfg.AppIdentity()
	require.ErrorIs(t, err, identity.ErrAppIdentityMissing)
}

func TestLoadClient_InvalidValues(t *testing.T) {
	t.Setenv("FIRECAT_STORE_URL", "not a url")
	t.Setenv("FIRECAT_LOG_LEVEL", "loud")
	t.Setenv("FIRECAT_APP_PUBLIC_KEY", "xyz")

	_, err := LoadClient(clientFlags(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StoreURL")
	assert.Contains(t, err.Error(), "Level")
	assert.Contains(t, err.Error(), "PublicKey")
	assert.Contains(t, err.Error(), "<redacted>")
	assert.NotContains(t, err.Error(), "xyz")
}

func TestLoadClient_MissingFile(t *testing.T) {
	_, err := LoadClient(clientFlags(t, "--config", filepath.Join(t.TempDir(), "nope.json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestSessionDSN(t *testing.T) {
	cfg := DefaultClientConfig
	cfg.DataDir = "/var/lib/firecat/"
	assert.Equal(t, "file:/var/lib/firecat/session.db?_pragma=busy_timeout(5000)", cfg.SessionDSN())
}

func TestLoadNode_RequiresSecrets(t *testing.T) {
	_, err := LoadNode(nodeFlags(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MasterKey")
	assert.Contains(t, err.Error(), "JWTSecret")
}

func TestLoadNode_Defaults(t *testing.T) {
	setNodeSecrets(t)

	cfg, err := LoadNode(nodeFlags(t))
	require.NoError(t, err)

	want := DefaultNodeConfig
	want.Wallet.MasterKey = testMasterKey
	want.Wallet.JWTSecret = testJWTSecret
	assert.EqualValues(t, want, *cfg)
}

func TestLoadNode_FlagsAndEnv(t *testing.T) {
	setNodeSecrets(t)
	t.Setenv("FIRECAT_STORAGE_S3_ACCESS_KEY", "AKIA")
	t.Setenv("FIRECAT_RATE_BURST", "7")

	cfg, err := LoadNode(nodeFlags(t,
		"--addr", "127.0.0.1:9000",
		"--grpc-addr", "127.0.0.1:9001",
		"--storage.backend", "s3",
		"--storage.s3.endpoint", "http://minio:9000",
		"--storage.s3.path-style",
		"--wallet.session-ttl", "30m",
		"--rate.rps", "2.5",
	))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "127.0.0.1:9001", cfg.GRPCAddr)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.PathStyle)
	assert.Equal(t, "AKIA", cfg.Storage.S3.AccessKey)
	assert.Equal(t, 30*time.Minute, cfg.Wallet.SessionTTL)
	assert.InDelta(t, 2.5, cfg.Rate.RPS, 1e-9)
	assert.Equal(t, 7, cfg.Rate.Burst)
}

func TestNodeConfig_S3NeedsBucket(t *testing.T) {
	cfg := DefaultNodeConfig
	cfg.Wallet.MasterKey = testMasterKey
	cfg.Wallet.JWTSecret = testJWTSecret
	cfg.Storage.Backend = BackendS3
	cfg.Storage.S3.Bucket = ""
	require.ErrorIs(t, cfg.Validate(), ErrS3BucketMissing)
}

func TestValidHostPort(t *testing.T) {
	type sample struct {
		Addr string `validate:"host_port"`
	}
	v := validator.New()
	require.NoError(t, v.RegisterValidation("host_port", validHostPort))

	tests := []struct {
		addr  string
		valid bool
	}{
		{"", false},
		{":8842", true},
		{"127.0.0.1:8080", true},
		{"localhost:8080", true},
		{"[::1]:443", true},
		{"127.0.0.1", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:http", false},
		{" :8080", false},
	}
	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			err := v.Struct(&sample{Addr: tc.addr})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadHookErrors(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		orig := defaultLoader
		t.Cleanup(func() { defaultLoader = orig })
		defaultLoader = func(k *koanf.Koanf, _ any) error {
			assert.NotNil(t, k)
			return assert.AnError
		}
		_, err := LoadClient(nil)
		require.True(t, errors.Is(err, assert.AnError))
	})

	t.Run("env", func(t *testing.T) {
		orig := envLoader
		t.Cleanup(func() { envLoader = orig })
		envLoader = func(*koanf.Koanf) error { return assert.AnError }
		_, err := LoadClient(nil)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("validators", func(t *testing.T) {
		orig := registerValidators
		t.Cleanup(func() { registerValidators = orig })
		registerValidators = func(*validator.Validate) error { return assert.AnError }
		_, err := LoadClient(nil)
		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "FIRECAT_APP_PUBLIC_KEY", EnvName("app.public_key"))
	assert.Equal(t, "FIRECAT_STORE_URL", EnvName("store_url"))
}
