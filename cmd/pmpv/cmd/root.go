// Package cmd provides the CLI commands for pmpv.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"pmpv/internal/backend"
	"pmpv/internal/cli"
	"pmpv/internal/config"
	"pmpv/internal/log"
	"pmpv/internal/services"
)

const version = "0.3.0"

// app is the state shared by all subcommands of one invocation. The backend
// is opened on first use so commands that never touch sessions do not
// create a database.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logLevel    string
	backendType string
	dbPath      string

	cfg    *config.Config
	logger *log.Logger
	res    *backend.BackendResult
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	return run(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
}

func run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pmpv",
		Short: "Quarterly volume-weighted average fuel price",
		Long: `pmpv keeps quarterly supplier ledgers and computes the volume-weighted
average purchase price (PMPV) of a three-month billing quarter.

Examples:
  pmpv session create "Q1 2024" --start-month January --adjustment 0.25
  pmpv month set 1 1 1 daily_volume 100000
  pmpv calc 1
  pmpv export 1 --google`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.backendType, "backend", "", "session store: sqlite or memory (default from DATA_BACKEND)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default from SQLITE_DB_PATH)")

	root.AddCommand(
		newSessionCmd(a),
		newMonthCmd(a),
		newCalcCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newTemplateCmd(a),
		newBackupCmd(a),
		newCalendarCmd(a),
		newServeCmd(a),
		newGoogleAuthCmd(a),
	)
	return root
}

func (a *app) init() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if a.logLevel != "" {
			c.LogLevel = a.logLevel
		}
		if a.backendType != "" {
			c.DataBackend = a.backendType
		}
		if a.dbPath != "" {
			c.SQLiteDBPath = a.dbPath
		}
	})
	if err != nil {
		return err
	}
	// Logs go to stderr so command output stays parseable.
	logger, err := cli.SetupLogger(a.errOut, cfg.LogLevel, log.ComponentCLI)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// backend opens the configured backend once per invocation.
func (a *app) backend(ctx context.Context) (*backend.BackendResult, error) {
	if a.res != nil {
		return a.res, nil
	}
	res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.res = res
	return res, nil
}

func (a *app) service(ctx context.Context) (*services.QuarterService, error) {
	res, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}
	return res.Service, nil
}

func (a *app) close() error {
	if a.res == nil || a.res.Cleanup == nil {
		return nil
	}
	err := a.res.Cleanup()
	a.res = nil
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}

func parseIndex(what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return n, nil
}
