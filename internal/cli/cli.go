// Package cli implements the watchlog command line client.
//
// Every command builds a fresh session against the configured backend, lets
// it settle, selects the requested watch and cycle, and then reads or mutates
// through it. Selection is never persisted between invocations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/watchlog/internal/adapters/http/client"
	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/config"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/internal/domain/selection"
)

// ErrNoWatch is returned by commands that need a selected watch when neither
// --watch nor default_watch names one. It wraps selection.ErrNoWatch.
var ErrNoWatch = fmt.Errorf("%w; pass --watch or set default_watch", selection.ErrNoWatch)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigFile string
	BackendURL string
	Watch      string
	Cycle      int
	JSON       bool
	NoColor    bool
	Verbose    bool
}

// New returns the root command.
func New() *cobra.Command {
	o := &Options{}

	cmd := &cobra.Command{
		Use:           "watchlog",
		Short:         "Track the accuracy of mechanical watches",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.ConfigFile, "config", "c", "", "config file (default $WATCHLOG_CONFIG or ~/.watchlog.yaml)")
	flags.StringVar(&o.BackendURL, "backend-url", "", "backend base URL")
	flags.StringVarP(&o.Watch, "watch", "w", "", "watch name or id (default: default_watch)")
	flags.IntVar(&o.Cycle, "cycle", 0, "cycle number (default: the watch's latest cycle)")
	flags.BoolVar(&o.JSON, "json", false, "output as JSON")
	flags.BoolVar(&o.NoColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "log to stderr")

	addWatchCommands(cmd, o)
	addMeasurementCommands(cmd, o)
	addPlot(cmd, o)
	addUI(cmd, o)
	addSeed(cmd, o)
	return cmd
}

// env is what a command runs against.
type env struct {
	cfg     *config.Config
	backend *client.Client
	session *service.Session
	out     *printer
}

// loadConfig layers the flags over the loaded configuration and sets up logging.
func (o *Options) loadConfig(cmd *cobra.Command, logFallback io.Writer) (*config.Config, func() error, error) {
	cfg, err := config.Load(cmd.Context(), config.WithFile(o.ConfigFile))
	if err != nil {
		return nil, nil, err
	}
	if o.BackendURL != "" {
		cfg.BackendURL = o.BackendURL
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if o.Verbose {
		logFallback = os.Stderr
	}
	closeLog, err := cfg.SetupLogging(logFallback)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// run starts a session, applies the flag selection and calls fn.
func (o *Options) run(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, closeLog, err := o.loadConfig(cmd, io.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	backend := client.New(cfg.BackendURL, client.WithTimeout(cfg.RequestTimeout()))
	defaultWatch := cfg.DefaultWatch
	if o.Watch != "" {
		defaultWatch = ""
	}
	session := service.New(backend,
		service.WithQueueSize(cfg.QueueSize),
		service.WithDefaultWatch(defaultWatch),
	)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = session.Stop(context.Background()) }()

	if err := session.Settle(ctx); err != nil {
		return err
	}
	if err := failure(session.Watches().Snapshot()); err != nil {
		return err
	}
	if err := o.applySelection(ctx, cmd, session); err != nil {
		return err
	}

	return fn(ctx, &env{
		cfg:     cfg,
		backend: backend,
		session: session,
		out:     newPrinter(cmd.OutOrStdout(), o.JSON, o.NoColor),
	})
}

// applySelection selects --watch (by name, then by id) and --cycle.
func (o *Options) applySelection(ctx context.Context, cmd *cobra.Command, s *service.Session) error {
	if o.Watch != "" {
		err := s.SelectWatchByName(ctx, o.Watch)
		if errors.Is(err, service.ErrUnknownWatch) {
			if _, convErr := strconv.ParseInt(o.Watch, 10, 64); convErr == nil {
				err = s.SelectWatchByID(ctx, model.ID(o.Watch))
			}
		}
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("cycle") {
		if err := s.SelectCycle(ctx, o.Cycle); err != nil {
			return err
		}
	}
	return s.Settle(ctx)
}

// selected returns the current selection, failing when no watch is selected.
func selected(ctx context.Context, s *service.Session) (model.Selection, error) {
	sel, err := s.Current(ctx)
	if err != nil {
		return sel, err
	}
	if sel.Watch == nil || !sel.Cycle.Valid {
		return sel, ErrNoWatch
	}
	return sel, nil
}

// failure returns the error of a failed snapshot.
func failure[K comparable, V any](snap *service.Snapshot[K, V]) error {
	if snap != nil && snap.Status == service.StatusFailed {
		return snap.Err
	}
	return nil
}
