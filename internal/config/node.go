package config

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/firecat-notes/firecat/internal/common"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	BackendSQL = "sql"
	BackendS3  = "s3"
)

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite pgx"`
	DSN    string `koanf:"dsn" validate:"required"`
}

// S3Config points at an S3-compatible bucket. Endpoint is empty for AWS
// itself; set it (with PathStyle) for MinIO and friends.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint" validate:"omitempty,url"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
}

type StorageConfig struct {
	Backend string   `koanf:"backend" validate:"oneof=sql s3"`
	S3      S3Config `koanf:"s3"`
}

type WalletConfig struct {
	AppKey     string        `koanf:"app_key" validate:"required"`
	MasterKey  string        `koanf:"master_key" validate:"required,min=32"`
	JWTSecret  string        `koanf:"jwt_secret" validate:"required,min=32"`
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`
}

type RateConfig struct {
	RPS   float64 `koanf:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// NodeConfig holds runtime settings for firecat-node. An empty GRPCAddr
// serves HTTP only.
type NodeConfig struct {
	Addr            string         `koanf:"addr" validate:"host_port"`
	GRPCAddr        string         `koanf:"grpc_addr" validate:"omitempty,host_port"`
	Database        DatabaseConfig `koanf:"database"`
	Storage         StorageConfig  `koanf:"storage"`
	Wallet          WalletConfig   `koanf:"wallet"`
	Rate            RateConfig     `koanf:"rate"`
	MaxBodyBytes    int64          `koanf:"max_body_bytes" validate:"gt=0"`
	Log             LogConfig      `koanf:"log"`
	ShutdownTimeout time.Duration  `koanf:"shutdown_timeout" validate:"gt=0"`
}

// DefaultNodeConfig is suitable for local development. The wallet secrets
// have no default and must be supplied.
var DefaultNodeConfig = NodeConfig{
	Addr:     ":8842",
	GRPCAddr: ":8843",
	Database: DatabaseConfig{Driver: DriverSQLite, DSN: "file:firecat-node.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
	Storage: StorageConfig{
		Backend: BackendSQL,
		S3:      S3Config{Bucket: "firecat", Region: "us-east-1"},
	},
	Wallet: WalletConfig{
		AppKey:     common.AppKey,
		SessionTTL: 24 * time.Hour,
	},
	Rate:            RateConfig{RPS: 20, Burst: 40},
	MaxBodyBytes:    1 << 20,
	Log:             LogConfig{Level: "info", Format: "text"},
	ShutdownTimeout: 10 * time.Second,
}

var ErrS3BucketMissing = errors.New("storage.s3.bucket is required for the s3 backend")

func BindNodeFlags(fs *pflag.FlagSet) {
	d := DefaultNodeConfig
	fs.String(ConfigFlag, "", "path to a JSON config file")
	fs.String("addr", d.Addr, "listen address")
	fs.String("grpc-addr", d.GRPCAddr, "gRPC listen address (empty disables)")
	fs.String("database.driver", d.Database.Driver, "database driver (sqlite, pgx)")
	fs.String("database.dsn", d.Database.DSN, "database DSN")
	fs.String("storage.backend", d.Storage.Backend, "record storage backend (sql, s3)")
	fs.String("storage.s3.bucket", d.Storage.S3.Bucket, "S3 bucket")
	fs.String("storage.s3.region", d.Storage.S3.Region, "S3 region")
	fs.String("storage.s3.endpoint", "", "S3 endpoint override")
	fs.Bool("storage.s3.path-style", false, "use path-style S3 addressing")
	fs.Duration("wallet.session-ttl", d.Wallet.SessionTTL, "wallet session lifetime")
	fs.Float64("rate.rps", d.Rate.RPS, "requests per second per client IP (0 disables)")
	fs.Int("rate.burst", d.Rate.Burst, "rate limiter burst")
	fs.Int64("max-body-bytes", d.MaxBodyBytes, "maximum request body size")
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log.format", d.Log.Format, "log format (text, json)")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout")
}

func LoadNode(fs *pflag.FlagSet) (*NodeConfig, error) {
	cfg := &NodeConfig{}
	if err := load(fs, DefaultNodeConfig, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *NodeConfig) Validate() error {
	var errs []error
	if err := validate(c); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Backend == BackendS3 && c.Storage.S3.Bucket == "" {
		errs = append(errs, ErrS3BucketMissing)
	}
	return errors.Join(errs...)
}
