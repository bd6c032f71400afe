// Command buildcatalog appends a batch of building definitions to a building
// catalog and reports how many were added.
//
// Usage:
//
//	buildcatalog -catalog data/buildings/buildings.json [-additions new.yaml] [-out merged.json] [-dry-run]
//	buildcatalog -schema
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/buildcatalog/internal/catalog"
	"github.com/MrWong99/buildcatalog/internal/config"
	"github.com/MrWong99/buildcatalog/internal/merger"
	"github.com/MrWong99/buildcatalog/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code: 0 on
// success, 1 when the merge fails and 2 for usage or configuration errors.
// The summary line is the only output written to stdout.
func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("buildcatalog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to an optional YAML configuration file")
	catalogPath := fs.String("catalog", "", "source catalog (overrides catalog.source)")
	outPath := fs.String("out", "", "destination catalog; defaults to the source (overrides catalog.destination)")
	additionsPath := fs.String("additions", "", "JSON or YAML file with definitions to append (default: built-in batch)")
	dryRun := fs.Bool("dry-run", false, "merge and report without writing the catalog")
	printSchema := fs.Bool("schema", false, "print the catalog JSON Schema and exit")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error (overrides log_level)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *printSchema {
		data, err := catalog.MarshalJSONSchema()
		if err != nil {
			fmt.Fprintf(stderr, "buildcatalog: %v\n", err)
			return 1
		}
		if _, err := stdout.Write(data); err != nil {
			return 1
		}
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Read(*configPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(stderr, "buildcatalog: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(stderr, "buildcatalog: %v\n", err)
			}
			return 2
		}
	}
	if *catalogPath != "" {
		cfg.Catalog.Source = *catalogPath
	}
	if *outPath != "" {
		cfg.Catalog.Destination = *outPath
	}
	if *additionsPath != "" {
		cfg.Catalog.Additions = *additionsPath
	}
	if *logLevel != "" {
		cfg.LogLevel = config.LogLevel(*logLevel)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Installed before validation so its warnings use the configured handler.
	slog.SetDefault(newLogger(cfg.LogLevel, stderr))

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "buildcatalog: invalid configuration: %v\n", err)
		return 2
	}
	if cfg.Catalog.Source == "" {
		fmt.Fprintln(stderr, "buildcatalog: no source catalog; pass -catalog or set catalog.source")
		fs.Usage()
		return 2
	}

	slog.Debug("buildcatalog starting",
		"version", version,
		"config", *configPath,
		"source", cfg.Catalog.Source,
		"destination", cfg.Catalog.Target(),
		"additions", cfg.Catalog.Additions,
		"backend", cfg.Store.BackendName(),
		"dry_run", *dryRun,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	promReg := prometheus.NewRegistry()
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Registry:       promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinStores(reg)

	store, err := reg.CreateStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open catalog store", "backend", cfg.Store.BackendName(), "err", err)
		return 1
	}
	if c, ok := store.(interface{ Close() }); ok {
		defer c.Close()
	}

	// ── Merge ─────────────────────────────────────────────────────────────────
	// The additions document is always a file, whatever backend holds the catalog.
	defs, err := merger.LoadAdditions(ctx, catalog.NewFileStore(), cfg.Catalog.Additions)
	if err != nil {
		slog.Error("failed to load additions", "err", err)
		return 1
	}

	m := merger.New(store,
		merger.WithMetrics(metrics),
		merger.WithBackend(cfg.Store.BackendName()),
	)
	res, runErr := m.Run(ctx, merger.Request{
		Source:      cfg.Catalog.Source,
		Destination: cfg.Catalog.Destination,
		Additions:   defs,
		DryRun:      *dryRun,
	})

	if path := cfg.Telemetry.MetricsTextfile; path != "" {
		if err := observe.WriteTextfile(path, promReg); err != nil {
			slog.Warn("failed to write metrics textfile", "path", path, "err", err)
		}
	}

	if runErr != nil {
		slog.Error("merge failed", "err", runErr)
		return 1
	}

	fmt.Fprintln(stdout, res)
	return 0
}

// registerBuiltinStores wires the catalog store backends that ship with
// buildcatalog into reg.
func registerBuiltinStores(reg *config.Registry) {
	reg.RegisterStore(config.BackendFile, func(context.Context, config.StoreConfig) (catalog.Store, error) {
		return catalog.NewFileStore(), nil
	})

	reg.RegisterStore(config.BackendPostgres, func(ctx context.Context, sc config.StoreConfig) (catalog.Store, error) {
		pool, err := pgxpool.New(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := catalog.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	})

	for _, name := range reg.Backends() {
		slog.Debug("registered store backend", "name", name)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
