// internal/web/server.go
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"missionctl/internal/config"
	"missionctl/internal/database"
	"missionctl/internal/events"
	"missionctl/internal/metrics"
	"missionctl/internal/notify"
)

type Server struct {
	config   *config.Config
	store    database.Store
	broker   *events.Broker
	metrics  *metrics.Collector
	notifier *notify.Notifier
	router   *gin.Engine
	server   *http.Server

	wsMu      sync.Mutex
	wsClients map[*WSClient]bool
}

func NewServer(cfg *config.Config, store database.Store, broker *events.Broker, metricsCollector *metrics.Collector, notifier *notify.Notifier) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		config:    cfg,
		store:     store,
		broker:    broker,
		metrics:   metricsCollector,
		notifier:  notifier,
		router:    router,
		wsClients: make(map[*WSClient]bool),
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	go s.updateMetricsRoutine(ctx)
	go s.watchChanges(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

// Router exposes the handler tree for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/activities", s.listActivities)
		api.GET("/activities/page", s.listActivitiesPaginated)
		api.GET("/activities/stats", s.getActivityStats)
		api.POST("/activities", s.logActivity)

		api.GET("/tasks", s.listScheduledTasks)
		api.GET("/tasks/week", s.getWeeklySchedule)
		api.POST("/tasks", s.upsertScheduledTask)

		api.GET("/search", s.globalSearch)
		api.POST("/index", s.indexContent)
		api.PUT("/memories", s.upsertMemory)

		api.GET("/health/checks", s.listHealthChecks)
		api.GET("/health/stats", s.getHealthStats)
		api.GET("/health/errors", s.getRecentErrors)
		api.POST("/health/ingest", s.ingestHealthData)
		api.POST("/health/checks", s.updateHealthCheck)

		api.GET("/admin/stats", s.getDatabaseStats)
		api.POST("/admin/compact", s.compactDatabase)

		api.GET("/status", s.serverStatus)
	}

	// WebSocket endpoint for live queries
	s.router.GET("/ws", s.handleWebSocket)

	// Prometheus metrics
	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) serverStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.metrics.UpdateSystemMetrics(ctx); err != nil {
				logrus.WithError(err).Error("Failed to update system metrics")
			}
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
