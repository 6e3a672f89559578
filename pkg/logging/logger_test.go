package logging

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestNewLoggerWithService(t *testing.T) {
	logger := NewLoggerWithService("clique-api")
	logger.SetOutput(io.Discard)
	hook := test.NewLocal(logger)

	logger.Info("starting")

	if len(hook.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(hook.Entries))
	}
	if got := hook.LastEntry().Data["service"]; got != "clique-api" {
		t.Fatalf("expected service field clique-api, got %v", got)
	}
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	logger := NewLogger()
	if logger.GetLevel() != InfoLevel {
		t.Fatalf("expected info level, got %v", logger.GetLevel())
	}
}
