package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/handlers"
	"bitbucket.org/mmdatafocus/portfolio_backend/middlewares"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/orbitsync"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORTFOLIO_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token := strings.TrimSpace(auth[7:])
				if token != "" {
					c.Request.Header.Set("token", token)
				}
			}
		}
		c.Next()
	})
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/login", handlers.LoginHandler())

	// The tracker and pipeline resolve the DB handle per call, so constructing
	// them before ConnectDatabaseWithRetry is safe.
	client := orbitsync.NewClient()
	tracker := orbitsync.NewTracker()
	pipeline := orbitsync.NewPipeline(client, tracker, logger)

	api := r.Group("/api", middlewares.RequireSession())
	{
		api.GET("/employees", handlers.ListEmployeesHandler())
		api.GET("/employees/:id", handlers.GetEmployeeHandler())
		api.POST("/employees", handlers.CreateEmployeeHandler())
		api.PUT("/employees/:id", handlers.UpdateEmployeeHandler())
		api.DELETE("/employees/:id", handlers.DeactivateEmployeeHandler())

		api.GET("/clients", handlers.ListClientsHandler())
		api.GET("/clients/:id", handlers.GetClientHandler())
		api.POST("/clients", handlers.CreateClientHandler())
		api.PUT("/clients/:id", handlers.UpdateClientHandler())
		api.DELETE("/clients/:id", handlers.DeactivateClientHandler())

		api.GET("/projects", handlers.ListProjectsHandler())
		api.GET("/projects/:id", handlers.GetProjectHandler())
		api.GET("/projects/:id/tasks", handlers.ListProjectTasksHandler())
		api.POST("/projects", handlers.CreateProjectHandler())
		api.PUT("/projects/:id", handlers.UpdateProjectHandler())

		api.GET("/effort-entries", handlers.ListEffortEntriesHandler())
		api.POST("/effort-entries", handlers.CreateEffortEntryHandler())
		api.DELETE("/effort-entries/:id", handlers.DeleteEffortEntryHandler())

		api.GET("/bookings", handlers.ListBookingsHandler())
		api.POST("/bookings", handlers.CreateBookingHandler())
		api.DELETE("/bookings/:id", handlers.DeleteBookingHandler())

		api.POST("/sync/:entity", orbitsync.TriggerSyncHandler(pipeline))
		api.GET("/sync/status", orbitsync.SyncStatusHandler(tracker))
		api.GET("/sync/history", orbitsync.SyncHistoryHandler(tracker))
		api.GET("/sync/stats", orbitsync.SyncStatsHandler(tracker))
		api.GET("/sync/unmapped", orbitsync.UnmappedEntriesHandler())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	scheduler := orbitsync.StartScheduler(pipeline, logger)
	defer scheduler.Stop()

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
