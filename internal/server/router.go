// Package server exposes the aggregated diff statistics over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
	"github.com/naka-gawa/git-line-diffs/internal/report"
)

// Refresher is the part of the coordinator the HTTP layer drives.
type Refresher interface {
	Refresh(ctx context.Context, reason string) (domain.AggregateSnapshot, error)
	Current() domain.AggregateSnapshot
	InFlight() bool
}

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Refresher Refresher
	Formatter *report.Formatter
	// Root is the workspace root that open requests resolve against.
	Root   string
	Opener Opener
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = report.NewFormatter(0)
	}
	h := &handler{
		refresher: cfg.Refresher,
		formatter: formatter,
		root:      cfg.Root,
		opener:    cfg.Opener,
		logger:    logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthcheck", HealthCheck)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/status", h.Status)
		api.GET("/snapshot", h.Snapshot)
		api.GET("/report", h.Report)
		api.POST("/refresh", h.Refresh)
		api.POST("/open", h.Open)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
