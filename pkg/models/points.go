package models

import "time"

// PairPoints is the interaction count for one canonical pair of users
// within one period. User1 is always the greater of the two IDs.
type PairPoints struct {
	User1  int64 `json:"user1"`
	User2  int64 `json:"user2"`
	Points int64 `json:"points"`
}

// PeriodAggregate groups the pair counts that fall inside one time period.
// Start is the period's first instant in UTC.
type PeriodAggregate struct {
	Start time.Time    `json:"start"`
	Pairs []PairPoints `json:"pairs"`
}
