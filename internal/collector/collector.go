// Package collector bridges the Discord gateway to the Kafka message bus.
// Every guild message seen by the bot is turned into a message event and
// published for the ingest service to persist.
package collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/clique-discord/clique/internal/metrics"
	"github.com/clique-discord/clique/pkg/kafka"
	"github.com/clique-discord/clique/pkg/logging"
)

// Source identifies this service in published events.
const Source = "clique-collector"

// Publisher publishes message events to the bus. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishMessageEvent(event *kafka.MessageEvent) error
}

// Handler receives gateway message events and publishes them.
type Handler struct {
	publisher Publisher
	metrics   *metrics.Collector
	logger    logging.Logger
}

// NewHandler creates a collector handler.
func NewHandler(publisher Publisher, m *metrics.Collector, logger logging.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// HandleMessageCreate processes one MESSAGE_CREATE gateway event. Direct
// messages carry no guild and are skipped; everything else, bot authors
// included, is published. Interaction scoring happens downstream, so the
// collector stays a dumb pipe.
func (h *Handler) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" {
		h.countSeen("dm")
		return
	}
	h.countSeen("guild")

	event, err := h.buildEvent(m)
	if err != nil {
		h.countPublished("invalid")
		h.logger.WithError(err).WithFields(logging.Fields{
			"message_id": m.ID,
			"guild_id":   m.GuildID,
			"channel_id": m.ChannelID,
		}).Error("Failed to build message event")
		return
	}

	start := time.Now()
	if err := h.publisher.PublishMessageEvent(event); err != nil {
		h.countPublished("error")
		h.logger.WithError(err).WithFields(logging.Fields{
			"message_id": event.MessageID,
			"guild":      event.Guild,
			"channel":    event.Channel,
		}).Error("Failed to publish message event")
		return
	}

	if h.metrics != nil {
		h.metrics.PublishDuration.WithLabelValues(kafka.TopicMessages).Observe(time.Since(start).Seconds())
	}
	h.countPublished("ok")

	h.logger.WithFields(logging.Fields{
		"message_id": event.MessageID,
		"guild":      event.Guild,
		"channel":    event.Channel,
	}).Debug("Published message event")
}

// buildEvent converts a gateway message into the wire event. Replies link
// to the referenced message's author, not the referenced message itself,
// since pair scoring is between users.
func (h *Handler) buildEvent(m *discordgo.MessageCreate) (*kafka.MessageEvent, error) {
	if m.Author == nil {
		return nil, fmt.Errorf("message %s has no author", m.ID)
	}

	id, err := parseSnowflake("message id", m.ID)
	if err != nil {
		return nil, err
	}
	guild, err := parseSnowflake("guild id", m.GuildID)
	if err != nil {
		return nil, err
	}
	channel, err := parseSnowflake("channel id", m.ChannelID)
	if err != nil {
		return nil, err
	}
	author, err := parseSnowflake("author id", m.Author.ID)
	if err != nil {
		return nil, err
	}

	event := &kafka.MessageEvent{
		EventID:       uuid.New().String(),
		EventType:     kafka.EventTypeMessageCreated,
		Source:        Source,
		MessageID:     id,
		Guild:         guild,
		Channel:       channel,
		Author:        author,
		AuthorName:    m.Author.Username,
		Timestamp:     m.Timestamp.UTC(),
		SchemaVersion: kafka.SchemaVersion,
	}

	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		replyTo, err := parseSnowflake("referenced author id", ref.Author.ID)
		if err != nil {
			return nil, err
		}
		name := ref.Author.Username
		event.ReplyTo = &replyTo
		event.ReplyToName = &name
	}

	return event, nil
}

func parseSnowflake(field, raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, raw, err)
	}
	return v, nil
}

func (h *Handler) countSeen(scope string) {
	if h.metrics == nil {
		return
	}
	h.metrics.MessagesSeen.WithLabelValues(scope).Inc()
}

func (h *Handler) countPublished(status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.EventsPublished.WithLabelValues(status).Inc()
}
