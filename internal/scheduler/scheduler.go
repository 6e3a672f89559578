// Package scheduler keeps the stored-rows gauges fresh so operators can
// watch the message log grow without querying the database.
package scheduler

import (
	"context"
	"time"

	"github.com/clique-discord/clique/internal/metrics"
	"github.com/clique-discord/clique/pkg/logging"
)

const refreshInterval = time.Minute

// Stats is the slice of the storage layer the scheduler reads.
type Stats interface {
	CountMessages(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Scheduler periodically refreshes storage statistics gauges.
type Scheduler struct {
	logger   logging.Logger
	store    Stats
	metrics  *metrics.Query
	ticker   *time.Ticker
	stopChan chan bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(store Stats, m *metrics.Query, logger logging.Logger) *Scheduler {
	return &Scheduler{
		logger:   logger,
		store:    store,
		metrics:  m,
		stopChan: make(chan bool),
	}
}

// Start begins the periodic refresh.
func (s *Scheduler) Start() {
	s.logger.WithFields(logging.Fields{
		"interval": refreshInterval,
	}).Info("Starting storage stats scheduler")

	s.ticker = time.NewTicker(refreshInterval)
	go s.run()

	// Populate the gauges shortly after startup instead of waiting a
	// full interval.
	go func() {
		time.Sleep(5 * time.Second)
		s.refresh()
	}()
}

// Stop stops the periodic refresh.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping storage stats scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopChan)
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.refresh()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages, err := s.store.CountMessages(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count stored messages")
		return
	}
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count stored users")
		return
	}

	s.metrics.StoredMessages.WithLabelValues().Set(float64(messages))
	s.metrics.StoredUsers.WithLabelValues().Set(float64(users))
}
