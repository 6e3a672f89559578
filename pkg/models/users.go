package models

// User is a participant known to the system. Names are refreshed on every
// message so they track the most recent observed username.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
