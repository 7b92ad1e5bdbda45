// Package api serves the credibility engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danieldevos90/brutally-honest-ai/internal/jobs"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/pipeline"
)

// JobService is the job orchestrator as seen by the handlers
type JobService interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (*model.Job, error)
	Get(ctx context.Context, owner, id string) (*model.Job, error)
	List(ctx context.Context, owner string) ([]*model.Job, error)
	Active(ctx context.Context, owner string) ([]*model.Job, error)
	Summary(ctx context.Context, owner string) (model.JobSummary, error)
	Cancel(ctx context.Context, owner, id string) (*model.Job, error)
	Reanalyze(ctx context.Context, owner, id string) (*model.Job, error)
	Delete(ctx context.Context, owner, id string) error
}

// Checker validates text synchronously
type Checker interface {
	Check(ctx context.Context, text string) (*model.CredibilityReport, error)
}

// AudioStore keeps uploaded audio for transcription
type AudioStore interface {
	Save(filename string, r io.Reader) (string, error)
}

// DocumentIngester adds documents to the knowledge base
type DocumentIngester interface {
	IngestDocument(ctx context.Context, filename string, data []byte, mimeType string) (*pipeline.IngestResult, error)
	IngestURL(ctx context.Context, rawURL string) (*pipeline.IngestResult, error)
}

// Deps are the services the API is built on. Ingester and Metrics are optional.
type Deps struct {
	Jobs     JobService
	Checker  Checker
	Audio    AudioStore
	Ingester DocumentIngester
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

// Server is the HTTP API
type Server struct {
	cfg    model.ServerConfig
	deps   Deps
	log    *logger.Logger
	engine *gin.Engine
}

// NewServer builds the router
func NewServer(cfg model.ServerConfig, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With("component", "api"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), requestLogger(s.log), requestMetrics(s.deps.Metrics))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", OwnerHeader, DeviceHeader},
			ExposeHeaders: []string{"Content-Length"},
		}))
	}

	r.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		})))
	}

	v1 := r.Group("/api/v1")
	v1.Use(requireOwner())
	{
		v1.POST("/jobs", s.submitJob)
		v1.POST("/jobs/upload", s.uploadJob)
		v1.GET("/jobs", s.listJobs)
		v1.GET("/jobs/active", s.activeJobs)
		v1.GET("/jobs/:id", s.getJob)
		v1.POST("/jobs/:id/cancel", s.cancelJob)
		v1.POST("/jobs/:id/reanalyze", s.reanalyzeJob)
		v1.DELETE("/jobs/:id", s.deleteJob)

		v1.POST("/validate", s.validateText)
		if s.deps.Ingester != nil {
			v1.POST("/documents", s.ingestDocument)
		}
	}
	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
