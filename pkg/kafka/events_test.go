package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
	err     error
	calls   int
}

func (f *fakeSink) ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error {
	f.calls++
	f.topic = topic
	f.key = key
	f.value = value
	f.headers = headers
	return f.err
}

func validEvent() MessageEvent {
	return MessageEvent{
		EventID:       "evt-1",
		EventType:     EventTypeMessageCreated,
		Source:        "clique-collector",
		MessageID:     888,
		Guild:         222,
		Channel:       777,
		Author:        123,
		AuthorName:    "My Username",
		Timestamp:     time.Date(2024, 3, 10, 10, 5, 0, 0, time.UTC),
		SchemaVersion: SchemaVersion,
	}
}

func TestMessageEventValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*MessageEvent)
		wantErr bool
	}{
		{"valid", func(*MessageEvent) {}, false},
		{"valid with reply", func(e *MessageEvent) { r := int64(456); e.ReplyTo = &r }, false},
		{"missing message id", func(e *MessageEvent) { e.MessageID = 0 }, true},
		{"missing guild", func(e *MessageEvent) { e.Guild = 0 }, true},
		{"missing author", func(e *MessageEvent) { e.Author = 0 }, true},
		{"missing channel", func(e *MessageEvent) { e.Channel = 0 }, true},
		{"missing timestamp", func(e *MessageEvent) { e.Timestamp = time.Time{} }, true},
		{"zero reply target", func(e *MessageEvent) { r := int64(0); e.ReplyTo = &r }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event := validEvent()
			tc.mutate(&event)

			err := event.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageEventHandlerDeliversTypedEvent(t *testing.T) {
	var got MessageEvent
	handler := NewMessageEventHandler(func(_ context.Context, event MessageEvent) error {
		got = event
		return nil
	}, nil, "clique-ingest", logrus.New())

	event := validEvent()
	value, err := json.Marshal(event)
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), Message{Topic: TopicMessages, Value: value})
	require.NoError(t, err)

	assert.Equal(t, event.MessageID, got.MessageID)
	assert.Equal(t, event.AuthorName, got.AuthorName)
	assert.True(t, got.Timestamp.Equal(event.Timestamp))
}

func TestMessageEventHandlerDeadLettersPoisonRecords(t *testing.T) {
	t.Run("undecodable value", func(t *testing.T) {
		sink := &fakeSink{}
		handler := NewMessageEventHandler(func(context.Context, MessageEvent) error {
			t.Fatal("handler must not run for a poison record")
			return nil
		}, sink, "clique-ingest", logrus.New())

		msg := Message{
			Topic:     TopicMessages,
			Partition: 2,
			Offset:    42,
			Key:       []byte("777"),
			Value:     []byte("not-json"),
			Timestamp: time.Now(),
		}

		err := handler.HandleMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, 1, sink.calls)
		assert.Equal(t, TopicMessagesDLQ, sink.topic)
		assert.Equal(t, msg.Key, sink.key)

		var payload DLQPayload
		require.NoError(t, json.Unmarshal(sink.value, &payload))
		assert.Equal(t, TopicMessages, payload.Topic)
		assert.Equal(t, int32(2), payload.Partition)
		assert.Equal(t, int64(42), payload.Offset)
		assert.Equal(t, "clique-ingest", payload.Consumer)
		assert.Contains(t, payload.Error, "decoding message event")
	})

	t.Run("invalid event", func(t *testing.T) {
		sink := &fakeSink{}
		handler := NewMessageEventHandler(func(context.Context, MessageEvent) error {
			t.Fatal("handler must not run for an invalid event")
			return nil
		}, sink, "clique-ingest", logrus.New())

		event := validEvent()
		event.Guild = 0
		value, err := json.Marshal(event)
		require.NoError(t, err)

		err = handler.HandleMessage(context.Background(), Message{Topic: TopicMessages, Value: value})
		require.NoError(t, err)
		assert.Equal(t, 1, sink.calls)
	})

	t.Run("dlq publish failure propagates for retry", func(t *testing.T) {
		sink := &fakeSink{err: errors.New("broker down")}
		handler := NewMessageEventHandler(func(context.Context, MessageEvent) error {
			return nil
		}, sink, "clique-ingest", logrus.New())

		err := handler.HandleMessage(context.Background(), Message{Topic: TopicMessages, Value: []byte("not-json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dead letter")
	})

	t.Run("no sink drops the record", func(t *testing.T) {
		handler := NewMessageEventHandler(func(context.Context, MessageEvent) error {
			return nil
		}, nil, "clique-ingest", logrus.New())

		err := handler.HandleMessage(context.Background(), Message{Topic: TopicMessages, Value: []byte("not-json")})
		assert.NoError(t, err)
	})
}

func TestMessageEventHandlerPropagatesTransientErrors(t *testing.T) {
	storeErr := errors.New("connection refused")
	handler := NewMessageEventHandler(func(context.Context, MessageEvent) error {
		return storeErr
	}, &fakeSink{}, "clique-ingest", logrus.New())

	event := validEvent()
	value, err := json.Marshal(event)
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), Message{Topic: TopicMessages, Value: value})
	assert.ErrorIs(t, err, storeErr)
}
