// Package ingest consumes message events from Kafka and persists them
// to the message log the aggregation engine reads.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clique-discord/clique/pkg/kafka"
	"github.com/clique-discord/clique/pkg/logging"
	"github.com/clique-discord/clique/pkg/models"
)

// Metrics holds all Prometheus metrics for the ingest service.
type Metrics struct {
	MessageEvents      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
}

// Writer is the slice of the storage layer ingestion writes through.
type Writer interface {
	UpsertUser(ctx context.Context, user models.User) error
	InsertMessage(ctx context.Context, m models.Message) error
}

// Handler persists validated message events.
type Handler struct {
	store   Writer
	logger  logging.Logger
	metrics *Metrics
}

// NewHandler creates a new ingest handler.
func NewHandler(store Writer, logger logging.Logger, metrics *Metrics) *Handler {
	return &Handler{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleMessageEvent refreshes the user directory with the names the
// event carries, then stores the message. Any storage failure propagates
// so the consumer retries the record.
func (h *Handler) HandleMessageEvent(ctx context.Context, event kafka.MessageEvent) error {
	start := time.Now()

	if h.metrics != nil {
		h.metrics.MessageEvents.WithLabelValues(event.EventType, "received").Inc()
	}

	// An event without a name would blank out a known user, so only
	// upsert users the event actually names.
	if event.AuthorName != "" {
		if err := h.store.UpsertUser(ctx, models.User{ID: event.Author, Name: event.AuthorName}); err != nil {
			h.countError(event.EventType)
			return fmt.Errorf("upserting author %d: %w", event.Author, err)
		}
	}
	if event.ReplyTo != nil && event.ReplyToName != nil && *event.ReplyToName != "" {
		if err := h.store.UpsertUser(ctx, models.User{ID: *event.ReplyTo, Name: *event.ReplyToName}); err != nil {
			h.countError(event.EventType)
			return fmt.Errorf("upserting reply target %d: %w", *event.ReplyTo, err)
		}
	}

	if err := h.store.InsertMessage(ctx, event.Message()); err != nil {
		h.countError(event.EventType)
		return fmt.Errorf("storing message %d: %w", event.MessageID, err)
	}

	if h.metrics != nil {
		h.metrics.MessageEvents.WithLabelValues(event.EventType, "stored").Inc()
		h.metrics.ProcessingDuration.WithLabelValues(event.Source).Observe(time.Since(start).Seconds())
	}

	h.logger.WithFields(logging.Fields{
		"message_id": event.MessageID,
		"guild":      event.Guild,
		"channel":    event.Channel,
	}).Debug("Stored message event")

	return nil
}

func (h *Handler) countError(eventType string) {
	if h.metrics != nil {
		h.metrics.MessageEvents.WithLabelValues(eventType, "error").Inc()
	}
}
