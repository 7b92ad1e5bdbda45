package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danieldevos90/brutally-honest-ai/internal/api"
	"github.com/danieldevos90/brutally-honest-ai/internal/jobs"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/pipeline"
	"github.com/danieldevos90/brutally-honest-ai/internal/storage"
	"github.com/danieldevos90/brutally-honest-ai/internal/transcribe"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job workers",
	Long: `Serve starts the HTTP API, the job workers and the periodic cleanup of old
jobs. SIGINT or SIGTERM drains in-flight requests; queued and running jobs are
marked failed.

Example:
  brutally-honest serve --addr :8080
  BRUTALLY_HONEST_JOBS_STORE=redis BRUTALLY_HONEST_REDIS_URL=redis://localhost:6379/0 brutally-honest serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	comps, err := pipeline.Build(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	if comps.Classifier == nil {
		log.Warn("no classifier available; claims with evidence will be UNVERIFIED", "provider", cfg.LLM.Provider)
	}

	store, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	audio, err := storage.NewOSFileStore(cfg.Storage.AudioDir)
	if err != nil {
		return fmt.Errorf("open audio store: %w", err)
	}

	orch := jobs.New(store, comps.Analyzer, jobs.Config{
		Workers:              cfg.Jobs.Workers,
		TranscriptionTimeout: cfg.Transcription.Timeout,
	},
		jobs.WithTranscriber(newTranscriber(cfg, log)),
		jobs.WithBlobStore(audio),
		jobs.WithLogger(log.With("component", "jobs")),
		jobs.WithMetrics(m),
	)

	server := api.NewServer(cfg.Server, api.Deps{
		Jobs:     orch,
		Checker:  comps.Analyzer,
		Audio:    audio,
		Ingester: comps.Ingester,
		Log:      log,
		Metrics:  m,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		cleanupLoop(gctx, orch, cfg.Jobs, log)
		return nil
	})
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Warn("job workers did not stop in time", "error", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	log.Info("shutdown complete")
	return runErr
}

func openJobStore(ctx context.Context, cfg model.Config) (jobs.Store, error) {
	switch strings.ToLower(cfg.Jobs.Store) {
	case "", "memory":
		return jobs.NewMemoryStore(), nil
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, fmt.Errorf("jobs store redis requires redis.url")
		}
		return jobs.OpenRedisStore(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown jobs store: %s (supported: memory, redis)", cfg.Jobs.Store)
	}
}

// newTranscriber falls back to a transcriber that fails every audio job
func newTranscriber(cfg model.Config, log *logger.Logger) transcribe.Transcriber {
	t, err := transcribe.New(cfg.Transcription)
	if err == nil {
		return t
	}
	log.Warn("transcription disabled", "provider", cfg.Transcription.Provider, "error", err)
	fallback := cfg.Transcription
	fallback.Provider = "none"
	t, _ = transcribe.New(fallback)
	return t
}

func cleanupLoop(ctx context.Context, orch *jobs.Orchestrator, cfg model.JobsConfig, log *logger.Logger) {
	if cfg.CleanupInterval <= 0 || cfg.Retention <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orch.Cleanup(ctx, cfg.Retention); err != nil {
				log.Warn("job cleanup failed", "error", err)
			}
		}
	}
}
