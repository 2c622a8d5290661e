package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satyaki-up/bugit/internal/bugs"
	"github.com/satyaki-up/bugit/internal/config"
	"github.com/satyaki-up/bugit/internal/credentials"
	"github.com/satyaki-up/bugit/internal/launchpad"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		return renderError(a.stderr, err)
	}
	return 0
}

// app carries what every subcommand shares: resolved config, logger and
// the standard streams.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	instance string
	verbose  bool
	jsonOut  bool

	cfg    *config.Config
	logger *zap.Logger

	// apiRoot and webRoot replace the environment's roots when set.
	apiRoot string
	webRoot string

	closers []func()
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, logger: zap.NewNop()}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bugit",
		Short: "File and correlate Launchpad bug reports",
		Long: `bugit searches, files and updates Launchpad bugs and correlates device
CIDs with the bugs tagged with them.

The Launchpad instance comes from --instance, then APPORT_LAUNCHPAD_INSTANCE,
then the nearest .bugit.yaml, and defaults to production.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.instance, "instance", "", "launchpad instance: production|staging|qastaging")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON")

	root.AddCommand(
		newLoginCmd(a),
		newSearchCmd(a),
		newShowCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newAttachCmd(a),
		newCommentCmd(a),
		newCorrelateCmd(a),
	)
	return root
}

func (a *app) setup() error {
	logger, err := newLogger(a.stderr, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := config.Load(cwd, os.Getenv)
	if err != nil {
		return fmt.Errorf("%w: %v", bugs.ErrInvalidInput, err)
	}
	if a.instance != "" {
		if _, err := config.LookupEnvironment(a.instance); err != nil {
			return fmt.Errorf("%w: %v", bugs.ErrInvalidInput, err)
		}
		cfg.Instance = strings.ToLower(a.instance)
	}
	a.cfg = cfg
	if cfg.Path != "" {
		a.logger.Debug("loaded config", zap.String("path", cfg.Path))
	}
	return nil
}

func (a *app) environment() config.Environment {
	env := a.cfg.Environment()
	if a.apiRoot != "" {
		env.APIRoot = a.apiRoot
	}
	if a.webRoot != "" {
		env.WebRoot = a.webRoot
	}
	return env
}

// newLogger writes human readable progress lines to w.
func newLogger(w io.Writer, verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	if !verbose {
		encCfg.LevelKey = ""
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core), nil
}

func renderError(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	switch {
	case errors.Is(err, bugs.ErrInvalidInput):
		return 2
	case errors.Is(err, bugs.ErrNotFound):
		return 3
	case launchpad.IsUnauthorized(err), errors.Is(err, credentials.ErrNotCached):
		return 4
	default:
		return 1
	}
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (a *app) printSummary(bug *launchpad.Bug, s bugs.Summary) {
	fmt.Fprintf(a.stdout, "id: %d\n", bug.ID)
	fmt.Fprintf(a.stdout, "title: %s\n", bug.Title)
	fmt.Fprintf(a.stdout, "status: %s\n", s.Status)
	fmt.Fprintf(a.stdout, "importance: %s\n", s.Importance)
	if s.Assignee != "" {
		fmt.Fprintf(a.stdout, "assignee: %s\n", s.Assignee)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(a.stdout, "tags: %s\n", s.TagString())
	}
	fmt.Fprintf(a.stdout, "url: %s\n", a.environment().BugURL(bug.ID))
}
