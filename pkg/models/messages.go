package models

import "time"

// Message is a single stored message event. Identifiers are Discord
// snowflakes carried as int64, matching the BIGINT columns they are stored
// in. ReplyTo identifies the author of the replied-to message, not the
// message itself.
type Message struct {
	ID        int64     `json:"id"`
	Guild     int64     `json:"guild"`
	Author    int64     `json:"author"`
	Channel   int64     `json:"channel"`
	ReplyTo   *int64    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
