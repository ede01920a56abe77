// Package cli implements the watchlist command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/watchlist/internal/paths"
	"github.com/mesh-intelligence/watchlist/pkg/types"
	"github.com/mesh-intelligence/watchlist/pkg/watchlist"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks bad arguments or flags.
var errUsage = errors.New("usage")

// app holds the state of one CLI invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Global flags.
	configDir string
	dataDir   string
	backend   string
	logLevel  string
	jsonOut   bool

	configDirPath string
	cfg           types.Config
	log           *logrus.Logger
}

// NewRootCmd creates the top-level "watchlist" command writing to stdout and
// stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{out: stdout, errOut: stderr}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "watchlist",
		Short: "Keep a movie watchlist in DynamoDB or a local SQLite file",
		Long: `watchlist mirrors a table of movies to watch, with genre, rating,
review and a watched flag. Every change is written to the store first and
shown only once the store confirms it.`,
		Version:           watchlist.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: per-user config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory for the sqlite backend (default: per-user data dir)")
	pf.StringVar(&a.backend, "backend", "", "store backend: sqlite or dynamodb")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonOut, "json", false, "output as JSON")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newConfigCmd(),
		a.newListCmd(),
		a.newAddCmd(),
		a.newToggleCmd(),
		a.newRemoveCmd(),
		a.newSetCmd(),
		a.newGenresCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newPosterCmd(),
		a.newServeCmd(),
	)
	return root
}

// setup configures logging and loads the configuration.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	a.log = logrus.New()
	a.log.SetOutput(a.errOut)
	a.log.SetLevel(level)
	a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if cmd.Name() == "version" {
		return nil
	}

	a.configDirPath, err = paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.cfg, err = a.loadConfig(cmd, a.configDirPath)
	return err
}

// open opens the configured watchlist and loads its snapshot. The caller
// must Close it.
func (a *app) open(ctx context.Context) (*watchlist.Watchlist, error) {
	w, err := watchlist.Open(ctx, a.cfg, watchlist.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	if err := w.Refresh(ctx); err != nil {
		w.Close()
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return w, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		err = fmt.Errorf("%w: %v", errUsage, err)
	}
	if err != nil {
		fmt.Fprintln(stderr, "watchlist:", err)
	}
	return exitCode(err)
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitCode maps an error to 0, 1 for user errors or 2 for system errors.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		types.IsValidation(err),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrBackendEmpty),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrTableEmpty),
		errors.Is(err, types.ErrRegionEmpty),
		errors.Is(err, types.ErrTimeoutInvalid):
		return exitUserError
	default:
		return exitSysError
	}
}

// noArgs and exactArgs tag argument errors as usage errors.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(lo, hi)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}
