package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/clique-discord/clique/internal/collector"
	"github.com/clique-discord/clique/internal/metrics"
	"github.com/clique-discord/clique/pkg/config"
	"github.com/clique-discord/clique/pkg/kafka"
	"github.com/clique-discord/clique/pkg/logging"
	"github.com/clique-discord/clique/pkg/monitoring"
	"github.com/clique-discord/clique/pkg/server"
	"github.com/clique-discord/clique/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("clique-collector")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Clique-Collector (Discord Gateway Collector)")

	token := config.RequireEnv("DISCORD_TOKEN")
	brokersEnv := config.RequireEnv("KAFKA_BROKERS")

	// Setup Kafka producer
	brokers := config.GetEnvSlice("KAFKA_BROKERS", nil)
	clientID := config.GetEnv("KAFKA_CLIENT_ID", "clique-collector")

	producer, err := kafka.NewProducer(brokers, clientID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("clique-collector", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("clique-collector", version.Version, version.GitCommit)

	// Create collector metrics
	collectorMetrics := &metrics.Collector{
		MessagesSeen:      metricsCollector.NewCounter("messages_seen_total", "Gateway messages seen", []string{"scope"}),
		EventsPublished:   metricsCollector.NewCounter("events_published_total", "Message events published", []string{"status"}),
		PublishDuration:   metricsCollector.NewHistogram("publish_duration_seconds", "Event publish time", []string{"topic"}, nil),
		GatewayReconnects: metricsCollector.NewCounter("gateway_reconnects_total", "Gateway connection events", []string{"event"}),
	}

	// Create Discord session
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Discord session")
	}

	handler := collector.NewHandler(producer, collectorMetrics, logger)
	session.AddHandler(handler.HandleMessageCreate)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Resumed) {
		collectorMetrics.GatewayReconnects.WithLabelValues("resumed").Inc()
		logger.Info("Discord gateway session resumed")
	})
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		collectorMetrics.GatewayReconnects.WithLabelValues("disconnect").Inc()
		logger.Warn("Discord gateway disconnected")
	})

	// Interaction scoring only needs guild messages
	session.Identify.Intents = discordgo.IntentsGuildMessages

	// Open connection
	if err := session.Open(); err != nil {
		logger.WithError(err).Fatal("Failed to open Discord connection")
	}
	defer session.Close()

	// Add health checks
	healthChecker.AddCheck("discord", monitoring.DiscordSessionHealthCheck(session))
	healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DISCORD_TOKEN": token,
		"KAFKA_BROKERS": brokersEnv,
	}))

	// Optional health check server
	if config.GetEnvBool("ENABLE_HEALTH_ENDPOINT", true) {
		go startHealthServer(healthChecker, metricsCollector, logger)
	}

	logger.Info("Clique-Collector started - watching guild messages")

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down Clique-Collector...")
}

func startHealthServer(healthChecker *monitoring.HealthChecker, metricsCollector *monitoring.MetricsCollector, logger logging.Logger) {
	router := server.SetupServiceRouter(logger, "clique-collector", healthChecker, metricsCollector)

	serverConfig := server.DefaultConfig("clique-collector", "18092")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Health server error")
	}
}
