package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clique-discord/clique/pkg/models"
)

// TopicMessages is the topic message events are published to.
const TopicMessages = "clique.messages"

// TopicMessagesDLQ receives message events that could not be decoded or
// failed validation, so the consumer never wedges on a poison record.
const TopicMessagesDLQ = "clique.messages.dlq"

// EventTypeMessageCreated is the event type for newly observed messages.
const EventTypeMessageCreated = "message.created"

// SchemaVersion is the current MessageEvent schema version.
const SchemaVersion = "1.0"

// MessageEvent is the wire format for one observed message. It carries the
// message metadata plus the usernames needed to keep the user registry
// current, so the consumer never has to call back to Discord.
type MessageEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Source        string    `json:"source"`
	MessageID     int64     `json:"message_id"`
	Guild         int64     `json:"guild"`
	Channel       int64     `json:"channel"`
	Author        int64     `json:"author"`
	AuthorName    string    `json:"author_name"`
	ReplyTo       *int64    `json:"reply_to,omitempty"`
	ReplyToName   *string   `json:"reply_to_name,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion string    `json:"schema_version"`
}

// Validate checks the invariants every stored message must satisfy.
func (e *MessageEvent) Validate() error {
	if e.MessageID == 0 {
		return fmt.Errorf("message event has no message id")
	}
	if e.Guild == 0 {
		return fmt.Errorf("message event %d has no guild", e.MessageID)
	}
	if e.Author == 0 {
		return fmt.Errorf("message event %d has no author", e.MessageID)
	}
	if e.Channel == 0 {
		return fmt.Errorf("message event %d has no channel", e.MessageID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("message event %d has no timestamp", e.MessageID)
	}
	if e.ReplyTo != nil && *e.ReplyTo == 0 {
		return fmt.Errorf("message event %d has an empty reply target", e.MessageID)
	}
	return nil
}

// Message converts the event into the stored message form.
func (e *MessageEvent) Message() models.Message {
	return models.Message{
		ID:        e.MessageID,
		Guild:     e.Guild,
		Author:    e.Author,
		Channel:   e.Channel,
		ReplyTo:   e.ReplyTo,
		Timestamp: e.Timestamp,
	}
}

// DeadLetterSink publishes permanently failed messages to a dead letter
// topic. *Producer satisfies it.
type DeadLetterSink interface {
	ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error
}

// MessageEventHandler adapts the raw consumer callback to typed message
// events. Records that cannot be decoded or fail validation will never
// succeed on retry, so they are shunted to the dead letter topic and the
// offset is committed; only transient handler errors propagate.
type MessageEventHandler struct {
	handler  func(ctx context.Context, event MessageEvent) error
	dlq      DeadLetterSink
	consumer string
	logger   *logrus.Logger
}

// NewMessageEventHandler creates a handler for message events. dlq may be
// nil, in which case poison records are logged and dropped.
func NewMessageEventHandler(handler func(ctx context.Context, event MessageEvent) error, dlq DeadLetterSink, consumer string, logger *logrus.Logger) *MessageEventHandler {
	return &MessageEventHandler{
		handler:  handler,
		dlq:      dlq,
		consumer: consumer,
		logger:   logger,
	}
}

// HandleMessage implements the consumer Handler signature.
func (h *MessageEventHandler) HandleMessage(ctx context.Context, msg Message) error {
	var event MessageEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return h.deadLetter(msg, fmt.Errorf("decoding message event: %w", err))
	}
	if err := event.Validate(); err != nil {
		return h.deadLetter(msg, err)
	}
	return h.handler(ctx, event)
}

func (h *MessageEventHandler) deadLetter(msg Message, cause error) error {
	fields := logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}

	if h.dlq == nil {
		h.logger.WithError(cause).WithFields(fields).Warn("Dropping poison message event, no dead letter sink configured")
		return nil
	}

	payload, err := EncodeDLQMessage(msg, cause, h.consumer)
	if err != nil {
		return err
	}
	// A dead letter publish failure is transient, let the consumer retry
	// the original record.
	if err := h.dlq.ProduceMessage(TopicMessagesDLQ, msg.Key, payload, map[string]string{
		"source":     h.consumer,
		"event_type": "dead_letter",
	}); err != nil {
		return fmt.Errorf("publishing to dead letter topic: %w", err)
	}

	h.logger.WithError(cause).WithFields(fields).Warn("Message event sent to dead letter topic")
	return nil
}
