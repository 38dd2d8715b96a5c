// Package httpapi builds the Gin engine: the shared middleware chain, the
// Slack Events endpoint and the responder admin API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-responder-bot/docs" // registers the OpenAPI document
	"github.com/tbourn/go-responder-bot/internal/config"
	"github.com/tbourn/go-responder-bot/internal/http/handlers"
	"github.com/tbourn/go-responder-bot/internal/http/middleware"
	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/services"
)

// Deps carries the application services the routes are bound to.
type Deps struct {
	Responders *services.ResponderService
	Set        *services.ResponderSet
	// Dispatcher receives Slack message events. When nil, /slack/events is
	// not mounted.
	Dispatcher handlers.EventDispatcher
}

// RegisterRoutes installs middleware and routes on r. Order matters:
//
//  1. otelgin tracing
//  2. RequestID
//  3. RedactingLogger (stores the request logger)
//  4. Recovery
//  5. body limit
//  6. Metrics, then GET /metrics
//  7. POST /slack/events, registered here so the limiter below never answers
//     Slack with a 429
//  8. IdempotencyValidator, before the limiter so replays are free
//  9. rate limiter, CORS, security headers
//
// Health, swagger and the admin API come after the last Use so every
// middleware applies to them. The admin API is skipped when deps carries no
// responder service.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Slack-Signature",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Slack Events API
	if deps.Dispatcher != nil {
		r.POST("/slack/events", handlers.NewSlackEvents(cfg.Slack.SigningSecret, deps.Dispatcher).Handle)
	}

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			if _, err := repo.GetIdempotency(ctx, db, userID, key, now); err != nil {
				return false, err
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per operator/IP, then CORS and security headers
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOperatorOrIP())
	r.Use(rl.Handler())
	r.Use(corsChain(cfg.CORS.AllowedOrigins)...)

	// HSTS only when enabled and the request is HTTPS
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:         cfg.Security.EnableHSTS,
		HSTSMaxAge:         cfg.Security.HSTSMaxAge,
		RevalidatePrefixes: []string{cfg.APIBasePath},
		EnablePolicy:       true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Responders == nil || deps.Set == nil {
		return
	}
	h := handlers.New(deps.Responders, deps.Set)
	if cfg.IdempotencyTTL > 0 {
		h.IdempotencyTTL = cfg.IdempotencyTTL
	}

	// Admin API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/responders", h.ListResponders)
		api.POST("/responders", h.CreateResponder)
		api.POST("/responders/test", h.TestMessage)
		api.GET("/responders/:id", h.GetResponder)
		api.PATCH("/responders/:id", h.UpdateResponder)
		api.DELETE("/responders/:id", h.DeleteResponder)
		api.GET("/responders/:id/history", h.ResponderHistory)
	}
}

var (
	corsMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, "If-None-Match", middleware.HeaderIdempotencyKey,
	}
	corsExposed = []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotency-Replayed"}
)

// corsChain returns the CORS middleware for the admin API. With no allowlist
// every origin is accepted without credentials and ACAO is always "*", even
// for requests that carry no Origin. Otherwise allowed origins are echoed
// back.
func corsChain(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: corsExposed,
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(cc)}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(cc)}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
