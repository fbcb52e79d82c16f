// Command hayabib manages Hayagriva bibliographies from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reoring/hayabib/entries"
	"github.com/reoring/hayabib/i18n"
	"github.com/reoring/hayabib/internal/config"
	"github.com/reoring/hayabib/internal/logging"
	"github.com/reoring/hayabib/internal/metrics"
	"github.com/reoring/hayabib/schema"
	"github.com/reoring/hayabib/store"
	"github.com/reoring/hayabib/store/memkv"
	"github.com/reoring/hayabib/store/s3kv"
	"github.com/reoring/hayabib/store/sqlkv"
	"github.com/reoring/hayabib/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printIssues(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the services one command invocation works with.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	promReg *prometheus.Registry
	metrics *metrics.Metrics

	cache      *schema.Cache
	validators *validate.Registry
	store      *store.Store
	entries    *entries.Service

	closers []io.Closer
}

type rootFlags struct {
	configPath  string
	logLevel    string
	dumpMetrics bool
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)
	root := &cobra.Command{
		Use:           "hayabib",
		Short:         "Manage Hayagriva bibliographies",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `hayabib keeps bibliographies (citation key -> reference entry) in a local
store, validates them against the published Hayagriva JSON Schema and
imports/exports them as YAML, JSON, TOML or BibLaTeX.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.ErrOrStderr(), flags.dumpMetrics)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: ./hayabib.yaml or <user config dir>/hayabib/hayabib.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.dumpMetrics, "metrics", false, "print collected metrics to stderr on exit")

	root.AddGroup(
		&cobra.Group{ID: "collections", Title: "Collections:"},
		&cobra.Group{ID: "entries", Title: "Entries:"},
		&cobra.Group{ID: "schema", Title: "Schema:"},
	)
	root.AddCommand(
		newListCmd(a), newShowCmd(a), newImportCmd(a), newExportCmd(a),
		newDeleteCmd(a), newRenameCmd(a), newValidateCmd(a), newDuplicatesCmd(a),
		newEntryCmd(a),
		newSchemaCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context, flags rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	i18n.SetLanguage(cfg.Lang)
	log, closer, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	a.closers = append(a.closers, closer)
	a.promReg = metrics.NewRegistry()
	a.metrics = metrics.New(a.promReg)
	if cfg.File != "" {
		log.Debug("config loaded", zap.String("file", cfg.File))
	}

	a.cache = schema.NewCache(
		schema.HTTPFetcher{URL: cfg.Schema.URL},
		schema.NewFilePersister(cfg.Schema.CachePath),
		schema.WithLogger(log.Named("schema")),
		schema.WithMetrics(a.metrics),
		schema.WithRetryInterval(cfg.Schema.RetryInterval),
		schema.WithRefreshTimeout(cfg.Schema.RefreshTimeout),
	)
	a.validators = validate.NewRegistry(a.cache,
		validate.WithLogger(log.Named("validate")),
		validate.WithMetrics(a.metrics),
	)
	kv, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	a.store = store.New(kv, a.validators,
		store.WithLogger(log.Named("store")),
		store.WithMetrics(a.metrics),
	)
	a.entries = entries.New(a.store, a.validators, entries.WithLogger(log.Named("entries")))
	return nil
}

func (a *app) openKV(ctx context.Context) (store.KV, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		return memkv.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		kv, err := sqlkv.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv)
		a.log.Debug("store opened", zap.String("driver", a.cfg.Store.Driver))
		return kv, nil
	case config.DriverS3:
		s3cfg, err := s3kv.ParseDSN(a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.log.Debug("store opened", zap.String("driver", "s3"),
			zap.String("bucket", s3cfg.Bucket), zap.String("prefix", s3cfg.Prefix))
		return s3kv.New(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// close waits for background schema refreshes so their result is persisted
// before the process exits.
func (a *app) close(stderr io.Writer, dumpMetrics bool) error {
	if a.cache != nil {
		a.cache.Wait()
	}
	var errs []error
	if dumpMetrics && a.promReg != nil {
		errs = append(errs, metrics.Dump(stderr, a.promReg))
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
