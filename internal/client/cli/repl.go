package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/firecat-notes/firecat/internal/access"
	"github.com/firecat-notes/firecat/internal/client/client"
	"github.com/firecat-notes/firecat/internal/client/services"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Notebooks(ctx context.Context) error
	Discover(ctx context.Context, args []string) error
	Notebook(ctx context.Context, args []string) error
	Posts(ctx context.Context, args []string) error
	Post(ctx context.Context, args []string) error
	React(ctx context.Context, args []string) error
	Reactions(ctx context.Context, args []string) error
	Profile(ctx context.Context, args []string) error
}

// usageError carries the help line for a malformed command.
type usageError struct{ line string }

func (e usageError) Error() string { return "usage: " + e.line }

func usage(line string) error { return usageError{line: line} }

const (
	helpSignedOut = "Available commands: signup, login, discover, help, quit"
	helpSignedIn  = `Available commands:
  whoami, logout
  notebooks                       list your notebooks
  discover [page]                 browse public notebooks
  notebook new|show|edit|delete <notebook>
  posts <notebook> [page]
  post new <notebook> | post show|delete <notebook> <post>
  react <notebook> <post> [like|comment]
  reactions <notebook> <post>
  profile [edit]
  quit`
)

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
// The first token of each line is the command and the rest are its
// arguments. Handler errors are reported on one line and never stop the
// loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "firecat %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "signup", "register":
			cmdErr = a.Signup(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.Whoami(ctx)

		case "notebooks", "l":
			cmdErr = a.Notebooks(ctx)

		case "discover":
			cmdErr = a.Discover(ctx, args)

		case "notebook", "nb":
			cmdErr = a.Notebook(ctx, args)

		case "posts":
			cmdErr = a.Posts(ctx, args)

		case "post":
			cmdErr = a.Post(ctx, args)

		case "react":
			cmdErr = a.React(ctx, args)

		case "reactions":
			cmdErr = a.Reactions(ctx, args)

		case "profile":
			cmdErr = a.Profile(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describe(cmdErr))
		}
		if err != nil {
			return
		}
	}
}

// describe turns a handler error into the line shown to the user.
func describe(err error) string {
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return ue.Error()
	case errors.Is(err, access.ErrNotAuthenticated):
		return "Please login first."
	case errors.Is(err, client.ErrUnauthorized):
		return "Session expired or credentials rejected. Please login again."
	case errors.Is(err, access.ErrDecryptionFailed):
		return "Could not decrypt the record. Wrong password?"
	case errors.Is(err, access.ErrMissingPassword):
		return "This notebook is protected: a password is required."
	case errors.Is(err, services.ErrNotOwner):
		return "You do not own that notebook."
	case errors.Is(err, services.ErrNotFound):
		return "Not found."
	case errors.Is(err, access.ErrTransport), errors.Is(err, services.ErrWriteFailed):
		return "The node is unreachable or rejected the request: " + err.Error()
	}
	return "Error: " + err.Error()
}
