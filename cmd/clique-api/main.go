package main

import (
	"context"
	"time"

	"github.com/clique-discord/clique/internal/handlers"
	"github.com/clique-discord/clique/internal/metrics"
	"github.com/clique-discord/clique/internal/scheduler"
	"github.com/clique-discord/clique/internal/store"
	"github.com/clique-discord/clique/pkg/config"
	"github.com/clique-discord/clique/pkg/database"
	"github.com/clique-discord/clique/pkg/logging"
	"github.com/clique-discord/clique/pkg/middleware"
	"github.com/clique-discord/clique/pkg/monitoring"
	"github.com/clique-discord/clique/pkg/server"
	"github.com/clique-discord/clique/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("clique-api")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Clique API (Interaction Query Service)")

	dbURL := config.RequireEnv("DATABASE_URL")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	dbConfig.MaxOpenConns = config.GetEnvInt("DB_MAX_OPEN_CONNS", dbConfig.MaxOpenConns)
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	messageStore := store.New(db)

	// Apply the schema so a fresh database works out of the box
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := messageStore.EnsureSchema(schemaCtx); err != nil {
		cancelSchema()
		logger.WithError(err).Fatal("Failed to apply database schema")
	}
	cancelSchema()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("clique-api", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("clique-api", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
	}))

	// Create query metrics
	serviceMetrics := &metrics.Query{
		PointsQueries:  metricsCollector.NewCounter("points_queries_total", "Points queries executed", []string{"status"}),
		UserLookups:    metricsCollector.NewCounter("user_lookups_total", "User lookups executed", []string{"status"}),
		QueryDuration:  metricsCollector.NewHistogram("query_duration_seconds", "Query handler duration", []string{"query_type"}, nil),
		StoredMessages: metricsCollector.NewGauge("stored_messages", "Messages currently stored", nil),
		StoredUsers:    metricsCollector.NewGauge("stored_users", "Users currently stored", nil),
	}

	// Keep the stored-rows gauges fresh
	statsScheduler := scheduler.NewScheduler(messageStore, serviceMetrics, logger)
	statsScheduler.Start()
	defer statsScheduler.Stop()

	// Initialize handlers
	handlers.Init(messageStore, logger, serviceMetrics)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "clique-api", healthChecker, metricsCollector)

	api := router.Group("/api")
	api.Use(middleware.TimeoutMiddleware(30 * time.Second))
	{
		api.GET("/points", handlers.GetPoints)
		api.GET("/users/:id", handlers.GetUser)
		api.GET("/granularities", handlers.GetGranularities)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("clique-api", "18090")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
