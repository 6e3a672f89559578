// Package engine computes time-bucketed interaction points between pairs
// of users from a snapshot of stored messages. Each invocation is a
// stateless read-only computation: scope filtering, reply inference, pair
// canonicalization and period aggregation run in-process over one
// consistent message snapshot, so concurrent callers need no coordination.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/clique-discord/clique/pkg/models"
)

var (
	// ErrUnknownGranularity is returned for granularity tokens outside the
	// supported set.
	ErrUnknownGranularity = errors.New("unknown granularity")
	// ErrSelfPair is returned when a pair of identical users reaches the
	// canonicalizer. That can only happen through an upstream bug, so the
	// whole computation fails rather than silently dropping the record.
	ErrSelfPair = errors.New("user cannot be paired with itself")
)

// Scope restricts the message set a computation observes. A nil field
// imposes no constraint. Both time bounds are exclusive.
type Scope struct {
	Guild  *int64
	After  *time.Time
	Before *time.Time
}

// Matches reports whether a message falls inside the scope.
func (s Scope) Matches(m models.Message) bool {
	if s.Guild != nil && m.Guild != *s.Guild {
		return false
	}
	if s.After != nil && !m.Timestamp.After(*s.After) {
		return false
	}
	if s.Before != nil && !m.Timestamp.Before(*s.Before) {
		return false
	}
	return true
}

// MessageSource is the narrow read interface the engine computes over. A
// source returns every message matching the scope, as a single consistent
// snapshot. The engine never mutates the underlying data.
type MessageSource interface {
	Messages(ctx context.Context, scope Scope) ([]models.Message, error)
}

// Query holds the parameters of one points computation.
type Query struct {
	Granularity Granularity
	Guild       *int64
	After       *time.Time
	Before      *time.Time
}

// Scope returns the message scope the query implies.
func (q Query) Scope() Scope {
	return Scope{Guild: q.Guild, After: q.After, Before: q.Before}
}

// CanonicalPair is an unordered pair of distinct users in its canonical
// form: User1 holds the greater ID. (A, B) and (B, A) canonicalize to the
// same value, so bidirectional interactions are never double counted.
type CanonicalPair struct {
	User1 int64
	User2 int64
}

// NewCanonicalPair canonicalizes a directed pair. Pairing a user with
// themself is rejected.
func NewCanonicalPair(a, b int64) (CanonicalPair, error) {
	if a == b {
		return CanonicalPair{}, fmt.Errorf("%w: %d", ErrSelfPair, a)
	}
	if a < b {
		a, b = b, a
	}
	return CanonicalPair{User1: a, User2: b}, nil
}

// Interaction is one directed contact: the author of a message talking to
// a counterpart, either through an explicit reply or through channel
// adjacency.
type Interaction struct {
	Author      int64
	Counterpart int64
	At          time.Time
}

// Interactions derives the interaction events from a message snapshot.
//
// Messages carrying an explicit reply target always use it. For the rest,
// the counterpart is inferred as the author of the nearest preceding
// message in the same channel; inference is a fallback, never an override.
// Messages are ordered per channel by timestamp, ties broken by ascending
// message ID so the predecessor relation is total and deterministic. The
// first message of a channel has no predecessor and yields nothing.
//
// Interactions where author and counterpart coincide are dropped here.
// Inference itself still fires for self-adjacent messages; the exclusion
// is a separate step so both behaviors stay independently testable.
func Interactions(msgs []models.Message) []Interaction {
	byChannel := make(map[int64][]models.Message)
	for _, m := range msgs {
		byChannel[m.Channel] = append(byChannel[m.Channel], m)
	}

	channels := make([]int64, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	out := make([]Interaction, 0, len(msgs))
	for _, ch := range channels {
		ordered := byChannel[ch]
		slices.SortFunc(ordered, func(a, b models.Message) int {
			if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		for i, m := range ordered {
			var counterpart int64
			switch {
			case m.ReplyTo != nil:
				counterpart = *m.ReplyTo
			case i > 0:
				counterpart = ordered[i-1].Author
			default:
				continue
			}
			if counterpart == m.Author {
				continue
			}
			out = append(out, Interaction{
				Author:      m.Author,
				Counterpart: counterpart,
				At:          m.Timestamp,
			})
		}
	}
	return out
}

// Aggregate counts interactions per (period, canonical pair) and groups
// the counts into per-period aggregates, ascending by period. The counting
// map is sparse: absent pairs mean zero, and periods without interactions
// are omitted entirely. Rows within a period are sorted by user IDs purely
// for stable serialization.
func Aggregate(interactions []Interaction, g Granularity) ([]models.PeriodAggregate, error) {
	counts := make(map[time.Time]map[CanonicalPair]int64)
	for _, in := range interactions {
		pair, err := NewCanonicalPair(in.Author, in.Counterpart)
		if err != nil {
			return nil, err
		}
		period := g.Truncate(in.At)
		byPair := counts[period]
		if byPair == nil {
			byPair = make(map[CanonicalPair]int64)
			counts[period] = byPair
		}
		byPair[pair]++
	}

	periods := make([]time.Time, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	slices.SortFunc(periods, func(a, b time.Time) int { return a.Compare(b) })

	out := make([]models.PeriodAggregate, 0, len(periods))
	for _, p := range periods {
		byPair := counts[p]
		pairs := make([]models.PairPoints, 0, len(byPair))
		for pair, points := range byPair {
			pairs = append(pairs, models.PairPoints{
				User1:  pair.User1,
				User2:  pair.User2,
				Points: points,
			})
		}
		slices.SortFunc(pairs, func(a, b models.PairPoints) int {
			if c := cmp.Compare(a.User1, b.User1); c != 0 {
				return c
			}
			return cmp.Compare(a.User2, b.User2)
		})
		out = append(out, models.PeriodAggregate{Start: p, Pairs: pairs})
	}
	return out, nil
}

// ComputePoints runs the full pipeline for one query: validate, read one
// scoped snapshot, derive interactions, aggregate. Parameters are checked
// before any data access. The computation is all-or-nothing; no partial
// result is returned on failure.
func ComputePoints(ctx context.Context, src MessageSource, q Query) ([]models.PeriodAggregate, error) {
	if !q.Granularity.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGranularity, string(q.Granularity))
	}

	msgs, err := src.Messages(ctx, q.Scope())
	if err != nil {
		return nil, fmt.Errorf("reading message snapshot: %w", err)
	}

	return Aggregate(Interactions(msgs), q.Granularity)
}
