package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/tutord/internal/config"
	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/logging"
	"github.com/abhisek/tutord/internal/session"
	"github.com/abhisek/tutord/internal/store"
)

// annotationOffline marks commands that run without opening the store.
const annotationOffline = "offline"

// app holds what a command needs once the config is loaded and the store
// is open.
type app struct {
	cfg     config.Config
	store   store.ProfileStore
	svc     *session.Service
	logger  *zap.Logger
	cleanup func()
}

func (a *app) close() {
	if a == nil {
		return
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}

// cli carries the opened app from the pre-run hook to the commands and
// back to execute, which closes it.
type cli struct {
	app *app
}

func (c *cli) get() *app { return c.app }

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "tutord",
		Short: "Adaptive tutoring assessment engine",
		Long: "tutord tracks per-topic learner state and recommends the next tutoring\n" +
			"action. Every command prints one JSON document on stdout.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationOffline] == "true" || cmd.Name() == "help" {
				return nil
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TUTORD_DB env var)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errs.InvalidInput("%v", err)
	})

	root.AddCommand(
		newSessionCmd(c.get),
		newAttemptCmd(c.get),
		newAssessCmd(c.get),
		newBreakCmd(c.get),
		newMisconceptionCmd(c.get),
		newTopicsCmd(c.get),
		newProfileCmd(c.get),
		newEventsCmd(c.get),
		newLearnersCmd(c.get),
		newReportCmd(c.get),
		newVersionCmd(),
	)
	return root
}

// openApp loads the config, applies --db and opens the store.
func openApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Driver = store.DriverSQLite
		cfg.Store.DSN = p
	}

	logger, cleanup, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc, err := session.NewService(st,
		session.WithPolicy(cfg.Policy),
		session.WithLogger(logger),
	)
	if err != nil {
		st.Close()
		cleanup()
		return nil, err
	}
	logger.Debug("store opened", zap.String("driver", cfg.Store.Driver))
	return &app{cfg: cfg, store: st, svc: svc, logger: logger, cleanup: cleanup}, nil
}

// Execute runs the CLI. A failure is printed as a JSON error document and
// returned so main can exit non-zero.
func Execute() error {
	return execute(context.Background(), os.Args[1:], os.Stdout)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	err := root.ExecuteContext(ctx)
	c.app.close()
	if err != nil {
		writeError(out, err)
	}
	return err
}

// errorDocument is the JSON shape of a failed command.
type errorDocument struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w io.Writer, err error) {
	_ = printJSON(w, errorDocument{Error: errs.Kind(err), Message: err.Error()})
}
