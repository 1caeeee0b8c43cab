package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/pagejournal/internal/cli/output"
	"github.com/yndnr/pagejournal/internal/config"
	"github.com/yndnr/pagejournal/internal/infra/buildinfo"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/storage/memory"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
)

const envKey = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "pjctl",
		Usage:    "Manage page-store backed SQLite databases and their rollback journals",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			PageCommand(),
			JournalCommand(),
			ServeCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"PAGEJOURNAL_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Page store directory (overrides storage.data_dir)",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Page store engine: badger, memory (overrides storage.engine)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
	}
}

// env is the state shared by every command of one invocation.
type env struct {
	cfg    *config.Config
	source *config.Resolved

	// configPath and overrides rebuild cfg when the file changes.
	configPath string
	overrides  map[string]any
	logger     *slog.Logger
	format     output.Format
	wide       bool

	registry *prometheus.Registry
	metrics  *metric.Metrics

	store  storage.PageStore
	badger *storage.BadgerEngine
}

func setup(c *cli.Context) error {
	overrides := map[string]any{}
	if c.IsSet("data-dir") {
		overrides["storage.data_dir"] = c.String("data-dir")
	}
	if c.IsSet("engine") {
		overrides["storage.engine"] = c.String("engine")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	resolved, err := config.Resolve(c.String("config"), overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := resolved.Config

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	c.Context = logger.WithLogger(c.Context, log)
	registry := prometheus.NewRegistry()
	c.App.Metadata[envKey] = &env{
		cfg:        cfg,
		source:     resolved,
		configPath: c.String("config"),
		overrides:  overrides,
		logger:     log,
		registry:   registry,
		metrics:    metric.New(registry, cfg.Metrics.Namespace),
		format:     format,
		wide:       c.Bool("wide"),
	}
	return nil
}

func teardown(c *cli.Context) error {
	e, ok := c.App.Metadata[envKey].(*env)
	if !ok || e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close page store: %w", err)
	}
	return nil
}

func envFrom(c *cli.Context) *env {
	return c.App.Metadata[envKey].(*env)
}

// Store opens the configured page store on first use.
func (e *env) Store() (storage.PageStore, error) {
	if e.store != nil {
		return e.store, nil
	}

	switch e.cfg.Storage.Engine {
	case config.EngineMemory:
		e.store = memory.New()
	default:
		eng, err := storage.NewBadgerEngine(e.cfg.KVConfig(), e.logger)
		if err != nil {
			return nil, fmt.Errorf("open page store: %w", err)
		}
		e.badger = eng
		e.store = eng
	}
	e.logger.Debug("page store opened",
		"engine", e.cfg.Storage.Engine,
		"data_dir", e.cfg.Storage.DataDir,
	)
	return e.store, nil
}

// print renders data in the selected output format.
func (e *env) print(c *cli.Context, data any) error {
	return output.NewFormatter(e.format, e.wide).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
