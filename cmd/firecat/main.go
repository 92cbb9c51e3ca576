// firecat is the Firecat Notes command-line client.
//
// Without arguments it starts the interactive shell. Subcommands:
//
//	firecat seed            create demo users, notebooks and posts
//	firecat keys generate   print a fresh app identity as env lines
//	firecat keys check      validate the configured app identity
//	firecat index check     read the public notebook index and report counts
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

	"github.com/firecat-notes/firecat/internal/client/cli"
	"github.com/firecat-notes/firecat/internal/client/seed"
	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: firecat [flags] [seed | keys generate | keys check | index check [page]]")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("firecat", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.BindClientFlags(fs)
	seedRate := fs.Float64("seed-rate", 5, "writes per second while seeding (0 for unlimited)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := fs.Args()

	// keys generate needs no configuration at all.
	if len(rest) == 2 && rest[0] == "keys" && rest[1] == "generate" {
		return keysGenerate(stdout)
	}

	cfg, err := config.LoadClient(fs)
	if err != nil {
		return err
	}
	log, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	switch {
	case len(rest) == 2 && rest[0] == "keys" && rest[1] == "check":
		return keysCheck(cfg, stdout)
	case len(rest) == 0, rest[0] == "seed", rest[0] == "index" && len(rest) >= 2 && rest[1] == "check":
	default:
		return errUsage
	}

	rt, err := cli.Build(ctx, cfg, log)
	if err != nil {
		if errors.Is(err, identity.ErrAppIdentityMissing) {
			return fmt.Errorf("%w: set %s and %s (see 'firecat keys generate')",
				err, config.EnvName("app.public_key"), config.EnvName("app.private_key"))
		}
		return err
	}
	defer rt.Close()

	switch {
	case len(rest) == 0:
		cli.NewApp(rt, log, stdin, stdout).Run(ctx)
		return nil
	case rest[0] == "seed":
		rep, err := seed.New(rt.Auth, rt.Notes, log, *seedRate).Run(ctx, seed.Demo)
		fmt.Fprintln(stdout, rep)
		return err
	default:
		return indexCheck(ctx, rt, rest[2:], stdout)
	}
}

func keysGenerate(w io.Writer) error {
	id, err := identity.Generate()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s=%s\n%s=%s\n",
		config.EnvName("app.public_key"), id.PublicKeyHex,
		config.EnvName("app.private_key"), id.PrivateKeyHex)
	return nil
}

func keysCheck(cfg *config.ClientConfig, w io.Writer) error {
	id, err := cfg.AppIdentity()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "app identity ok: %s\n", id.PublicKeyHex)
	return nil
}

func indexCheck(ctx context.Context, rt *cli.Runtime, args []string, w io.Writer) error {
	page := 1
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &page); err != nil || page < 1 {
			return fmt.Errorf("bad page %q", args[0])
		}
	}
	d, err := rt.Notes.DiscoverNotebooks(ctx, page, 100)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "public index %s: page %d, %d readable, %d skipped, %d total\n",
		rt.App.PublicKeyHex, page, len(d.Notebooks), d.Skipped, d.Total)
	return nil
}
