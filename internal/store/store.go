// Package store persists raw Discord messages and the user directory
// in PostgreSQL, and serves the ordered message snapshots the
// aggregation engine reads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clique-discord/clique/internal/engine"
	"github.com/clique-discord/clique/pkg/database"
	dbsql "github.com/clique-discord/clique/pkg/database/sql"
	"github.com/clique-discord/clique/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type Store struct {
	db database.PostgresConn
}

func New(db database.PostgresConn) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables and indexes if they don't exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	content, err := dbsql.Content.ReadFile("schema/clique.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// UpsertUser inserts a user or refreshes their stored name.
func (s *Store) UpsertUser(ctx context.Context, user models.User) error {
	query := `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Name)
	return err
}

// GetUser retrieves a user by ID. Returns ErrNotFound when unknown.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT id, name FROM users WHERE id = $1`

	var u models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name)
	if errors.Is(err, database.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// InsertMessage records a message. Redeliveries of an already stored
// message are ignored so ingestion stays idempotent across retries.
func (s *Store) InsertMessage(ctx context.Context, m models.Message) error {
	query := `
		INSERT INTO messages (id, guild, author, channel, reply_to, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Guild, m.Author, m.Channel, m.ReplyTo, m.Timestamp.UTC())
	return err
}

// Messages returns every message matching the scope, ordered by
// timestamp then id so reply inference sees a deterministic sequence.
// Both time bounds are exclusive.
func (s *Store) Messages(ctx context.Context, scope engine.Scope) ([]models.Message, error) {
	query := `
		SELECT id, guild, author, channel, reply_to, timestamp
		FROM messages`

	var args []interface{}
	var conds []string

	if scope.Guild != nil {
		args = append(args, *scope.Guild)
		conds = append(conds, fmt.Sprintf("guild = $%d", len(args)))
	}
	if scope.After != nil {
		args = append(args, scope.After.UTC())
		conds = append(conds, fmt.Sprintf("timestamp > $%d", len(args)))
	}
	if scope.Before != nil {
		args = append(args, scope.Before.UTC())
		conds = append(conds, fmt.Sprintf("timestamp < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY timestamp, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var replyTo sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Guild, &m.Author, &m.Channel, &replyTo, &m.Timestamp); err != nil {
			return nil, err
		}
		if replyTo.Valid {
			m.ReplyTo = &replyTo.Int64
		}
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountMessages reports the number of stored messages.
func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// CountUsers reports the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
