// Command spendtrack is the command-line client: every invocation is one
// session against the local store or, when signed in, the document server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/mmynk/spendtrack/internal/app"
	"github.com/mmynk/spendtrack/internal/config"
	"github.com/mmynk/spendtrack/internal/synchronizer"
	"github.com/mmynk/spendtrack/pkg/logging"
)

// env is shared by all subcommands.
type env struct {
	configPath string
	guest      bool
}

// open loads configuration and starts a ready session.
func (e *env) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	logging.SetupCLI(cfg.Log.Level)

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if e.guest {
		if err := a.EnterGuestMode(); err != nil {
			a.Close()
			return nil, err
		}
	}

	readyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := a.WaitReady(readyCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// fail prints a user-facing message for err and returns a failure status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "spendtrack:", synchronizer.UserMessage(err))
	fmt.Fprintln(os.Stderr, "  detail:", err)
	return subcommands.ExitFailure
}

func main() {
	e := &env{}
	flag.StringVar(&e.configPath, "config", "", "path to a YAML config file")
	flag.BoolVar(&e.guest, "guest", false, "use local guest storage for this session")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&signupCmd{env: e}, "account")
	subcommands.Register(&loginCmd{env: e}, "account")
	subcommands.Register(&logoutCmd{env: e}, "account")

	subcommands.Register(&addCmd{env: e}, "expenses")
	subcommands.Register(&rmCmd{env: e}, "expenses")
	subcommands.Register(&lsCmd{env: e}, "expenses")
	subcommands.Register(&watchCmd{env: e}, "expenses")
	subcommands.Register(&scanCmd{env: e}, "expenses")

	subcommands.Register(&reportCmd{env: e}, "insights")
	subcommands.Register(&settingsCmd{env: e}, "settings")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
