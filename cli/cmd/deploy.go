package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/adapter"
	"github.com/harborworks/lighter/adapter/redis"
	"github.com/harborworks/lighter/adapter/webhook"
	"github.com/harborworks/lighter/cli/config"
	"github.com/harborworks/lighter/cli/render"
	"github.com/harborworks/lighter/journal"
	"github.com/harborworks/lighter/log"
	"github.com/harborworks/lighter/metrics"
	"github.com/harborworks/lighter/pipeline"
	"github.com/harborworks/lighter/store"
	"github.com/harborworks/lighter/types"
)

// DeployCommand returns the deploy command: the full pipeline from scan
// to deployment submission.
func DeployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "Deploy a site directory (scan, hash, diff, upload missing, submit manifest)",
		ArgsUsage: "[dir]",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to a path, or - for stderr",
			},
		),
		Action: deployAction,
	}
}

// pipelineFlags are shared between deploy and plan.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Aliases: []string{"p"},
			Usage:   "Target project name",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Artifact store API base URL (api backend)",
		},
		ConfigFlag,
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Hash worker limit (default 8)",
		},
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "Per-file size guard in bytes (default 25 MiB)",
		},
		&cli.StringSliceFlag{
			Name:  "ignore",
			Usage: "Extra ignore entry (substring match, repeatable)",
		},
		FormatFlag,
		NoColorFlag,
	}
}

// runSetup is everything resolved before a pipeline run starts.
type runSetup struct {
	cfg       *config.Config
	runID     string
	logger    *log.Logger
	collector *metrics.Collector
	store     store.Store
	journal   *journal.Journal
	notifiers []adapter.Adapter
}

func deployAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	setup, err := newRunSetup(ctx, c, true)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	defer setup.close()

	runner, err := pipeline.NewRunner(pipeline.Config{
		Project:     setup.cfg.Project,
		Root:        setup.cfg.Root,
		Store:       setup.store,
		RunID:       setup.runID,
		Ignore:      setup.cfg.Ignore,
		Concurrency: setup.cfg.Concurrency,
		MaxFileSize: setup.cfg.MaxFileSize,
		Logger:      setup.logger,
		Collector:   setup.collector,
		Journal:     setup.journal,
		Notifiers:   setup.notifiers,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	result, runErr := runner.Run(ctx)
	code := exitCodeFor(runErr)

	if result == nil {
		result = &types.Result{
			RunID:   setup.runID,
			Project: setup.cfg.Project,
			Status:  types.StatusFailure,
		}
	}

	if reportPath := c.String("report"); reportPath != "" {
		report := pipeline.BuildRunReport(result, runner.Timings(), setup.collector.Snapshot(), runErr, code)
		if err := pipeline.WriteRunReport(report, reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), code)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(result)
}

// newRunSetup resolves config, store, journal, and notifiers for a run.
// withSideEffects controls whether the journal and notifiers are wired
// (deploy) or left off (plan).
func newRunSetup(ctx context.Context, c *cli.Context, withSideEffects bool) (*runSetup, error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := log.NewLogger(runID, cfg.Project)
	collector := metrics.NewCollector(runID, cfg.Project, cfg.Backend)

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	setup := &runSetup{
		cfg:       cfg,
		runID:     runID,
		logger:    logger,
		collector: collector,
		store:     st,
	}

	if !withSideEffects {
		return setup, nil
	}

	if !cfg.History.Disabled {
		jnl, err := journal.Open(cfg.History.Path)
		if err != nil {
			// History is best-effort; a bad path must not block deploys.
			fmt.Fprintf(os.Stderr, "Warning: deploy history disabled: %v\n", err)
		} else {
			setup.journal = jnl
		}
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return nil, err
	}
	setup.notifiers = notifiers

	return setup, nil
}

func (s *runSetup) close() {
	for _, n := range s.notifiers {
		_ = n.Close()
	}
}

// resolveConfig loads lighter.yaml (when present or named), overlays CLI
// flags, and validates. The account token comes from LIGHTER_TOKEN, with
// the config token as fallback.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}

	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil {
			path = config.DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override file values.
	if v := c.String("project"); v != "" {
		cfg.Project = v
	}
	if v := c.String("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v := c.Int("concurrency"); v > 0 {
		cfg.Concurrency = v
	}
	if v := c.Int64("max-file-size"); v > 0 {
		cfg.MaxFileSize = v
	}
	cfg.Ignore = append(cfg.Ignore, c.StringSlice("ignore")...)

	if dir := c.Args().First(); dir != "" {
		cfg.Root = dir
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}

	if token := os.Getenv(config.TokenEnvVar); token != "" {
		cfg.Token = token
	}

	if cfg.Project == "" {
		return nil, fmt.Errorf("project is required (--project or lighter.yaml)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStore constructs the artifact-store client for the configured
// backend.
func buildStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "api":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required for the api backend (--endpoint or lighter.yaml)")
		}
		return store.NewAPIClient(store.APIConfig{
			Endpoint:      cfg.Endpoint,
			Token:         cfg.Token,
			CheckTimeout:  cfg.Timeouts.Check.Duration,
			UploadTimeout: cfg.Timeouts.Upload.Duration,
			DeployTimeout: cfg.Timeouts.Deploy.Duration,
			Logger:        logger,
		})
	case "s3":
		return store.NewS3Store(ctx, store.S3Config{
			Bucket:        cfg.S3.Bucket,
			Prefix:        cfg.S3.Prefix,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PublicURL:     cfg.S3.PublicURL,
			CheckTimeout:  cfg.Timeouts.Check.Duration,
			UploadTimeout: cfg.Timeouts.Upload.Duration,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

// buildNotifiers constructs the configured deploy notifiers.
func buildNotifiers(cfg *config.Config) ([]adapter.Adapter, error) {
	var notifiers []adapter.Adapter

	if cfg.Notifiers.Webhook.URL != "" {
		wcfg := webhook.Config{
			URL:     cfg.Notifiers.Webhook.URL,
			Headers: cfg.Notifiers.Webhook.Headers,
			Timeout: cfg.Notifiers.Webhook.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if cfg.Notifiers.Webhook.Retries != nil {
			wcfg.Retries = *cfg.Notifiers.Webhook.Retries
		}
		hook, err := webhook.New(wcfg)
		if err != nil {
			return nil, fmt.Errorf("webhook notifier: %w", err)
		}
		notifiers = append(notifiers, hook)
	}

	if cfg.Notifiers.Redis.URL != "" {
		rcfg := redis.Config{
			URL:     cfg.Notifiers.Redis.URL,
			Channel: cfg.Notifiers.Redis.Channel,
			Timeout: cfg.Notifiers.Redis.Timeout.Duration,
			Retries: redis.DefaultRetries,
		}
		if cfg.Notifiers.Redis.Retries != nil {
			rcfg.Retries = *cfg.Notifiers.Redis.Retries
		}
		pub, err := redis.New(rcfg)
		if err != nil {
			return nil, fmt.Errorf("redis notifier: %w", err)
		}
		notifiers = append(notifiers, pub)
	}

	return notifiers, nil
}

// exitCodeFor maps a run error to the stable exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case pipeline.IsAuthenticationError(err):
		return exitAuthentication
	case pipeline.IsInvalidInput(err):
		return exitInvalidInput
	default:
		return exitFailure
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
