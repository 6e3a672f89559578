package testutil

import (
	"database/sql/driver"
	"time"

	"github.com/clique-discord/clique/pkg/models"
)

// DatabaseFixtures provides test data fixtures for database testing
type DatabaseFixtures struct{}

// NewDatabaseFixtures creates a new database fixtures helper
func NewDatabaseFixtures() *DatabaseFixtures {
	return &DatabaseFixtures{}
}

// Conversation returns a three-message exchange in one channel of guild 1:
// user 1 speaks, user 2 answers, user 1 answers back. No explicit replies,
// so every interaction comes from inference.
func (f *DatabaseFixtures) Conversation() []models.Message {
	return []models.Message{
		{ID: 101, Guild: 1, Author: 1, Channel: 100, Timestamp: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{ID: 102, Guild: 1, Author: 2, Channel: 100, Timestamp: time.Date(2024, 3, 10, 10, 5, 0, 0, time.UTC)},
		{ID: 103, Guild: 1, Author: 1, Channel: 100, Timestamp: time.Date(2024, 3, 10, 10, 10, 0, 0, time.UTC)},
	}
}

// SecondGuildExchange returns a two-message exchange in guild 2, an hour
// after the Conversation fixture.
func (f *DatabaseFixtures) SecondGuildExchange() []models.Message {
	return []models.Message{
		{ID: 201, Guild: 2, Author: 3, Channel: 200, Timestamp: time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)},
		{ID: 202, Guild: 2, Author: 4, Channel: 200, Timestamp: time.Date(2024, 3, 10, 11, 2, 0, 0, time.UTC)},
	}
}

// ReplyMessage returns a message carrying an explicit reply to user 1,
// following the Conversation fixture in the same channel.
func (f *DatabaseFixtures) ReplyMessage() models.Message {
	replyTo := int64(1)
	return models.Message{
		ID:        104,
		Guild:     1,
		Author:    2,
		Channel:   100,
		ReplyTo:   &replyTo,
		Timestamp: time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC),
	}
}

// Users returns the users participating in the message fixtures.
func (f *DatabaseFixtures) Users() []models.User {
	return []models.User{
		{ID: 1, Name: "alice"},
		{ID: 2, Name: "bob"},
		{ID: 3, Name: "carol"},
		{ID: 4, Name: "dave"},
	}
}

// GetMessageColumns returns the column names message queries scan
func (f *DatabaseFixtures) GetMessageColumns() []string {
	return []string{"id", "guild", "author", "channel", "reply_to", "timestamp"}
}

// GetMessageRowData returns row data for a given message
func (f *DatabaseFixtures) GetMessageRowData(m models.Message) []driver.Value {
	var replyTo driver.Value
	if m.ReplyTo != nil {
		replyTo = *m.ReplyTo
	}
	return []driver.Value{m.ID, m.Guild, m.Author, m.Channel, replyTo, m.Timestamp}
}

// GetUserColumns returns the column names user queries scan
func (f *DatabaseFixtures) GetUserColumns() []string {
	return []string{"id", "name"}
}

// GetUserRowData returns row data for a given user
func (f *DatabaseFixtures) GetUserRowData(u models.User) []driver.Value {
	return []driver.Value{u.ID, u.Name}
}
