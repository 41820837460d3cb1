// Package httpapi wires the Gin transport to the assistant service. It owns
// middleware ordering, CORS and security posture, the health and metrics
// endpoints, and mounts the versioned API under cfg.APIBasePath.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/http/handlers"
	"github.com/tbourn/bibleai/internal/http/middleware"
	"github.com/tbourn/bibleai/internal/services"
)

// maxBodyBytes caps request bodies; the longest accepted prompt is a few KiB.
const maxBodyBytes = 1 << 20

// Deps are the collaborators RegisterRoutes needs.
type Deps struct {
	Assistant *services.Assistant
	Config    config.Config
	// Metrics receives the HTTP collectors and is served on /metrics. A nil
	// registry gets a fresh one.
	Metrics *prometheus.Registry
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID, then Session
//  3. AccessLog with redaction
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Edge rate limiter (health and metrics exempt)
//  8. CORS and security headers
//  9. Gzip, except on server-sent event streams
func RegisterRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	reg := deps.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID(), middleware.Session())
	r.Use(middleware.AccessLog(middleware.RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	metrics := middleware.NewHTTPMetrics(reg)
	r.Use(metrics.Handler())

	limiter := middleware.NewEdgeLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP()).
		Exempt("/health", "/metrics")
	r.Use(limiter.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		Policy:     true,
	}))

	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression,
			gzip.WithExcludedPathsRegexs([]string{`/chapters/[^/]+/stream$`})))
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	h := handlers.NewFromAssistant(deps.Assistant)
	h.OnStream = metrics.StreamOpened

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/catalog", h.Catalog)
		api.GET("/view", h.ResolveView)
		api.GET("/verse-of-the-day", h.VerseOfTheDay)
		api.GET("/usage", h.Usage)

		api.GET("/preferences", h.GetPreferences)
		api.PUT("/preferences", h.PutPreferences)
		api.POST("/preferences/reset", h.ResetPreferences)

		api.POST("/search", h.Search)
		api.GET("/chats/:surface/messages", h.ListMessages)
		api.POST("/chats/:surface/messages", h.PostMessage)

		api.GET("/quiz", h.GetQuiz)
		api.POST("/quiz/start", h.StartQuiz)
		api.POST("/quiz/select", h.SelectOption)
		api.POST("/quiz/next", h.NextQuestion)

		api.GET("/chapters/:chapter/stream", h.StreamChapter)
	}
}

// corsMiddleware allows every origin when none are configured; otherwise it
// echoes allow-listed origins. X-User-ID carries the session and must pass.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SessionHeader},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for health probes and curl
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

// limitBody caps the request body at maxBytes; larger bodies fail to bind.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" or "" as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
