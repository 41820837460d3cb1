// Package app assembles the assistant from configuration: storage, the
// Gemini gateway, analytics sinks, tracing and the HTTP server. Both the
// server and the terminal client build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/conversation"
	httpapi "github.com/tbourn/bibleai/internal/http"
	"github.com/tbourn/bibleai/internal/kv"
	"github.com/tbourn/bibleai/internal/llm"
	"github.com/tbourn/bibleai/internal/observability"
	"github.com/tbourn/bibleai/internal/repo"
	"github.com/tbourn/bibleai/internal/services"
	"github.com/tbourn/bibleai/internal/sysutil"
	"github.com/tbourn/bibleai/internal/telemetry"
)

// shutdownGrace bounds graceful shutdown of the server and exporters.
const shutdownGrace = 10 * time.Second

// localSessionKey stores the terminal client's session id.
const localSessionKey = "bible_ai_local_session"

// Options override parts of the wiring.
type Options struct {
	// Version is reported in traces.
	Version string
	// APIKey replaces cfg.Gemini.APIKey when set.
	APIKey string
	// Model replaces the Gemini client; tests inject a fake here.
	Model llm.Model
	// DB replaces the SQLite file named by cfg.DBPath.
	DB *gorm.DB
}

// App owns the long-lived dependencies.
type App struct {
	Config    config.Config
	DB        *gorm.DB
	KV        kv.Store
	Assistant *services.Assistant
	Metrics   *prometheus.Registry

	closers []func(context.Context) error
}

// New wires an App. On error everything opened so far is released.
func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg, Metrics: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	shutdown, err := observability.Setup(ctx, cfg.OTEL, opts.Version,
		attribute.String("gemini.model", cfg.Gemini.Model))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	a.DB = opts.DB
	if a.DB == nil {
		if a.DB, err = repo.OpenSQLite(cfg.DBPath); err != nil {
			return nil, err
		}
		db := a.DB
		a.closers = append(a.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	if err = repo.AutoMigrate(a.DB); err != nil {
		return nil, err
	}
	a.KV = kv.SQLStore{DB: a.DB}

	model := opts.Model
	if model == nil {
		key := sysutil.FirstNonEmpty(opts.APIKey, cfg.Gemini.APIKey)
		gm, gerr := llm.NewGenAIModel(ctx, key, cfg.Gemini.Model)
		if gerr != nil {
			return nil, gerr
		}
		log.Info().Str("model", gm.Name()).Msg("gemini client ready")
		model = gm
	}

	audit, auditCloser := sysutil.NewAuditLogger(cfg.AuditLogPath)
	a.closers = append(a.closers, func(context.Context) error { return auditCloser.Close() })

	prom, err := telemetry.NewPromSink(a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("analytics metrics: %w", err)
	}

	// The gateway audits model calls itself.
	gw := llm.NewGateway(model,
		llm.WithSink(prom),
		llm.WithAuditLogger(audit),
		llm.WithRetryDelay(cfg.Gemini.RetryDelay),
	)

	var msgs conversation.Store
	if cfg.PersistHistory {
		msgs = conversation.SQLStore{DB: a.DB}
	}
	a.Assistant = services.NewAssistant(gw, services.NewRegistry(a.KV, msgs, cfg.DailyLimit))
	a.Assistant.Analytics = telemetry.Multi(telemetry.LogSink{Logger: audit}, prom)
	if cfg.MaxPromptRunes > 0 {
		a.Assistant.MaxPromptRunes = cfg.MaxPromptRunes
	}
	return a, nil
}

// Handler returns the Gin engine with every route registered.
func (a *App) Handler() http.Handler {
	if a.Config.GinMode != "" {
		gin.SetMode(a.Config.GinMode)
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Assistant: a.Assistant,
		Config:    a.Config,
		Metrics:   a.Metrics,
	})
	return r
}

// Server builds the http.Server from the configured timeouts.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Handler(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: a.Config.ReadHeaderTimeout,
		WriteTimeout:      a.Config.WriteTimeout,
		IdleTimeout:       a.Config.IdleTimeout,
		MaxHeaderBytes:    a.Config.MaxHeaderBytes,
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		log.Info().Msg("http server shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// LocalSession returns the session id of the terminal client, creating and
// saving a random one on first use.
func (a *App) LocalSession(ctx context.Context) (string, error) {
	id, ok, err := a.KV.Get(ctx, localSessionKey)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := a.KV.Set(ctx, localSessionKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
