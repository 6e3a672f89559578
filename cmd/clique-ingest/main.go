package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clique-discord/clique/internal/ingest"
	"github.com/clique-discord/clique/internal/store"
	"github.com/clique-discord/clique/pkg/config"
	"github.com/clique-discord/clique/pkg/database"
	"github.com/clique-discord/clique/pkg/kafka"
	"github.com/clique-discord/clique/pkg/logging"
	"github.com/clique-discord/clique/pkg/monitoring"
	"github.com/clique-discord/clique/pkg/server"
	"github.com/clique-discord/clique/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("clique-ingest")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Clique-Ingest (Message Event Processing)")

	dbURL := config.RequireEnv("DATABASE_URL")
	brokersEnv := config.RequireEnv("KAFKA_BROKERS")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
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
	healthChecker := monitoring.NewHealthChecker("clique-ingest", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("clique-ingest", version.Version, version.GitCommit)

	// Create ingest metrics
	metrics := &ingest.Metrics{
		MessageEvents:      metricsCollector.NewCounter("message_events_total", "Message events processed", []string{"event_type", "status"}),
		ProcessingDuration: metricsCollector.NewHistogram("event_processing_duration_seconds", "Event processing time", []string{"source"}, nil),
	}

	// Setup Kafka consumer, plus a producer for the dead letter topic
	brokers := config.GetEnvSlice("KAFKA_BROKERS", nil)
	groupID := config.GetEnv("KAFKA_GROUP_ID", "clique-ingest")
	clientID := config.GetEnv("KAFKA_CLIENT_ID", "clique-ingest")

	producer, err := kafka.NewProducer(brokers, clientID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	ingestHandler := ingest.NewHandler(messageStore, logger, metrics)
	eventHandler := kafka.NewMessageEventHandler(ingestHandler.HandleMessageEvent, producer, "clique-ingest", logger)

	consumer, err := kafka.NewConsumer(brokers, groupID, clientID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}

	consumer.AddHandler(kafka.TopicMessages, eventHandler.HandleMessage)

	// Now add health checks with all dependencies
	healthChecker.AddCheck("postgres", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("kafka", monitoring.KafkaConsumerHealthCheck(consumer.GetClient()))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":   dbURL,
		"KAFKA_BROKERS":  brokersEnv,
		"KAFKA_GROUP_ID": groupID,
	}))

	// Start consuming
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Kafka consumer error")
		}
	}()

	// Optional health check server
	if config.GetEnvBool("ENABLE_HEALTH_ENDPOINT", true) {
		go startHealthServer(healthChecker, metricsCollector, logger)
	}

	logger.Info("Clique-Ingest started - consuming message events from Kafka")

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down Clique-Ingest...")

	// Cleanup
	cancel()
	if consumer != nil {
		consumer.Close()
	}

	logger.Info("Clique-Ingest stopped")
}

func startHealthServer(healthChecker *monitoring.HealthChecker, metricsCollector *monitoring.MetricsCollector, logger logging.Logger) {
	router := server.SetupServiceRouter(logger, "clique-ingest", healthChecker, metricsCollector)

	serverConfig := server.DefaultConfig("clique-ingest", "18091")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Health server error")
	}
}
