package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/clique-discord/clique/internal/engine"
	"github.com/clique-discord/clique/pkg/models"
)

// MemoryStore is an in-memory implementation of the same surface as Store.
// It is not persistent and exists for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	messages map[int64]models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]models.User),
		messages: make(map[int64]models.Message),
	}
}

// UpsertUser inserts the user or updates its name.
func (s *MemoryStore) UpsertUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return nil
}

// GetUser fetches a user by id, returning ErrNotFound when absent.
func (s *MemoryStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// InsertMessage stores the message. Matching the primary key semantics of
// the SQL store, a message that already exists is left untouched.
func (s *MemoryStore) InsertMessage(ctx context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[m.ID]; ok {
		return nil
	}
	m.Timestamp = m.Timestamp.UTC()
	s.messages[m.ID] = m
	return nil
}

// Messages returns the messages matching the scope, ordered by timestamp
// then id like the SQL store.
func (s *MemoryStore) Messages(ctx context.Context, scope engine.Scope) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if scope.Matches(m) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// CountMessages returns the number of stored messages.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.messages)), nil
}

// CountUsers returns the number of stored users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.users)), nil
}
