// firecat-node runs the reference record store and wallet service.
//
// Settings come from flags, FIRECAT_* environment variables or a JSON file
// (--config). The wallet secrets are read from the environment or the file
// only:
//
//	FIRECAT_WALLET_MASTER_KEY   seals user identities and private records
//	FIRECAT_WALLET_JWT_SECRET   signs session tokens
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := pflag.NewFlagSet("firecat-node", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.BindNodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadNode(fs)
	if err != nil {
		return fmt.Errorf("%w\nset %s and %s (at least 32 characters each)", err,
			config.EnvName("wallet.master_key"), config.EnvName("wallet.jwt_secret"))
	}

	log, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	app, err := node.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}
