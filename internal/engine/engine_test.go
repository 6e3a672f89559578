package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clique-discord/clique/pkg/models"
)

// sliceSource serves a fixed message set, applying the scope the same
// way a real store would. It records how many snapshot reads happened.
type sliceSource struct {
	msgs  []models.Message
	calls int
}

func (s *sliceSource) Messages(_ context.Context, scope Scope) ([]models.Message, error) {
	s.calls++
	var out []models.Message
	for _, m := range s.msgs {
		if scope.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

type failingSource struct {
	err error
}

func (f *failingSource) Messages(context.Context, Scope) ([]models.Message, error) {
	return nil, f.err
}

func ref(v int64) *int64 {
	return &v
}

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 10, hour, min, 0, 0, time.UTC)
}

func msg(id, guild, author, channel int64, ts time.Time, replyTo *int64) models.Message {
	return models.Message{
		ID:        id,
		Guild:     guild,
		Author:    author,
		Channel:   channel,
		ReplyTo:   replyTo,
		Timestamp: ts,
	}
}

func TestNewCanonicalPair(t *testing.T) {
	testCases := []struct {
		name string
		a, b int64
	}{
		{"ascending input", 1, 2},
		{"descending input", 2, 1},
		{"large identifiers", 175928847299117063, 85614143951892480},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			forward, err := NewCanonicalPair(tc.a, tc.b)
			require.NoError(t, err)
			reverse, err := NewCanonicalPair(tc.b, tc.a)
			require.NoError(t, err)

			assert.Equal(t, forward, reverse)
			assert.Greater(t, forward.User1, forward.User2)
		})
	}

	t.Run("rejects self pair", func(t *testing.T) {
		_, err := NewCanonicalPair(7, 7)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSelfPair)
	})
}

func TestScopeMatches(t *testing.T) {
	m := msg(1, 10, 1, 100, at(10, 5), nil)

	testCases := []struct {
		name     string
		scope    Scope
		expected bool
	}{
		{"empty scope passes everything", Scope{}, true},
		{"matching guild", Scope{Guild: ref(10)}, true},
		{"other guild", Scope{Guild: ref(11)}, false},
		{"after is exclusive at the bound", Scope{After: timeRef(at(10, 5))}, false},
		{"after before the timestamp", Scope{After: timeRef(at(10, 4))}, true},
		{"before is exclusive at the bound", Scope{Before: timeRef(at(10, 5))}, false},
		{"before after the timestamp", Scope{Before: timeRef(at(10, 6))}, true},
		{"window containing the timestamp", Scope{After: timeRef(at(10, 0)), Before: timeRef(at(10, 10))}, true},
		{"window excluding the timestamp", Scope{After: timeRef(at(10, 6)), Before: timeRef(at(10, 10))}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.scope.Matches(m))
		})
	}
}

func timeRef(t time.Time) *time.Time {
	return &t
}

func TestInteractions(t *testing.T) {
	t.Run("infers predecessor within a channel", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 2, 100, at(10, 5), nil),
		})

		require.Len(t, got, 1)
		assert.Equal(t, int64(2), got[0].Author)
		assert.Equal(t, int64(1), got[0].Counterpart)
		assert.True(t, got[0].At.Equal(at(10, 5)))
	})

	t.Run("first message in a channel yields nothing", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
		})
		assert.Empty(t, got)
	})

	t.Run("explicit reply wins over inference", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 2, 100, at(10, 5), nil),
			msg(103, 1, 3, 100, at(10, 7), ref(1)),
		})

		require.Len(t, got, 2)
		// Message 103 links to 1 explicitly, not to 2 by adjacency.
		assert.Equal(t, int64(3), got[1].Author)
		assert.Equal(t, int64(1), got[1].Counterpart)
	})

	t.Run("consecutive messages by one author produce no self link", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 1, 100, at(10, 5), nil),
		})
		assert.Empty(t, got)
	})

	t.Run("explicit self reply is dropped", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), ref(1)),
		})
		assert.Empty(t, got)
	})

	t.Run("channels are independent", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(201, 1, 2, 200, at(10, 5), nil),
		})
		// Each message opens its own channel, so neither infers a link.
		assert.Empty(t, got)
	})

	t.Run("timestamp ties break by ascending message id", func(t *testing.T) {
		got := Interactions([]models.Message{
			msg(6, 1, 40, 100, at(10, 0), nil),
			msg(5, 1, 30, 100, at(10, 0), nil),
		})

		require.Len(t, got, 1)
		assert.Equal(t, int64(40), got[0].Author)
		assert.Equal(t, int64(30), got[0].Counterpart)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		msgs := []models.Message{
			msg(103, 1, 1, 100, at(10, 10), nil),
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 2, 100, at(10, 5), nil),
		}
		shuffled := []models.Message{msgs[2], msgs[0], msgs[1]}

		assert.Equal(t, Interactions(msgs), Interactions(shuffled))
	})
}

func TestAggregate(t *testing.T) {
	t.Run("counts by period and pair", func(t *testing.T) {
		interactions := []Interaction{
			{Author: 2, Counterpart: 1, At: at(10, 5)},
			{Author: 1, Counterpart: 2, At: at(10, 10)},
			{Author: 3, Counterpart: 1, At: at(11, 0)},
		}

		got, err := Aggregate(interactions, Hour)
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.True(t, got[0].Start.Equal(at(10, 0)))
		assert.Equal(t, []models.PairPoints{{User1: 2, User2: 1, Points: 2}}, got[0].Pairs)
		assert.True(t, got[1].Start.Equal(at(11, 0)))
		assert.Equal(t, []models.PairPoints{{User1: 3, User2: 1, Points: 1}}, got[1].Pairs)
	})

	t.Run("empty input aggregates to nothing", func(t *testing.T) {
		got, err := Aggregate(nil, Day)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("rows within a period are ordered by pair", func(t *testing.T) {
		interactions := []Interaction{
			{Author: 5, Counterpart: 2, At: at(10, 1)},
			{Author: 1, Counterpart: 5, At: at(10, 2)},
			{Author: 2, Counterpart: 3, At: at(10, 3)},
		}

		got, err := Aggregate(interactions, Day)
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, []models.PairPoints{
			{User1: 3, User2: 2, Points: 1},
			{User1: 5, User2: 1, Points: 1},
			{User1: 5, User2: 2, Points: 1},
		}, got[0].Pairs)
	})

	t.Run("self interaction fails the whole computation", func(t *testing.T) {
		interactions := []Interaction{
			{Author: 2, Counterpart: 1, At: at(10, 5)},
			{Author: 7, Counterpart: 7, At: at(10, 6)},
		}

		got, err := Aggregate(interactions, Hour)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSelfPair)
		assert.Nil(t, got)
	})
}

func TestComputePoints(t *testing.T) {
	conversation := []models.Message{
		msg(101, 1, 1, 100, at(10, 0), nil),
		msg(102, 1, 2, 100, at(10, 5), nil),
		msg(103, 1, 1, 100, at(10, 10), nil),
	}

	t.Run("adjacent chatter in one hour", func(t *testing.T) {
		src := &sliceSource{msgs: conversation}

		got, err := ComputePoints(context.Background(), src, Query{Granularity: Hour})
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.True(t, got[0].Start.Equal(at(10, 0)))
		assert.Equal(t, []models.PairPoints{{User1: 2, User2: 1, Points: 2}}, got[0].Pairs)
	})

	t.Run("explicit reply replaces inference without double counting", func(t *testing.T) {
		withReply := append([]models.Message{}, conversation...)
		withReply[2] = msg(103, 1, 1, 100, at(10, 10), ref(2))
		src := &sliceSource{msgs: withReply}

		got, err := ComputePoints(context.Background(), src, Query{Granularity: Hour})
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, []models.PairPoints{{User1: 2, User2: 1, Points: 2}}, got[0].Pairs)
	})

	t.Run("exclusive before bound removes the message entirely", func(t *testing.T) {
		src := &sliceSource{msgs: conversation}
		before := at(10, 10)

		got, err := ComputePoints(context.Background(), src, Query{Granularity: Hour, Before: &before})
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, []models.PairPoints{{User1: 2, User2: 1, Points: 1}}, got[0].Pairs)
	})

	t.Run("total points equal derivable interactions", func(t *testing.T) {
		msgs := []models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 2, 100, at(10, 5), nil),
			msg(103, 1, 1, 100, at(10, 10), ref(3)),
			msg(201, 2, 4, 200, at(11, 0), nil),
			msg(202, 2, 5, 200, at(11, 1), nil),
			msg(203, 2, 5, 200, at(11, 2), nil), // self-adjacent, no link
		}
		src := &sliceSource{msgs: msgs}

		got, err := ComputePoints(context.Background(), src, Query{Granularity: Day})
		require.NoError(t, err)

		var total int64
		for _, period := range got {
			for _, row := range period.Pairs {
				total += row.Points
			}
		}
		assert.Equal(t, int64(len(Interactions(msgs))), total)
		assert.Equal(t, int64(3), total)
	})

	t.Run("repeated invocations agree", func(t *testing.T) {
		src := &sliceSource{msgs: conversation}
		q := Query{Granularity: Hour}

		first, err := ComputePoints(context.Background(), src, q)
		require.NoError(t, err)
		second, err := ComputePoints(context.Background(), src, q)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("per guild results union to the unscoped result", func(t *testing.T) {
		msgs := []models.Message{
			msg(101, 1, 1, 100, at(10, 0), nil),
			msg(102, 1, 2, 100, at(10, 5), nil),
			msg(201, 2, 3, 200, at(10, 6), nil),
			msg(202, 2, 4, 200, at(10, 7), nil),
		}
		src := &sliceSource{msgs: msgs}

		unscoped, err := ComputePoints(context.Background(), src, Query{Granularity: Hour})
		require.NoError(t, err)

		merged := map[time.Time]map[CanonicalPair]int64{}
		for _, guild := range []int64{1, 2} {
			scoped, err := ComputePoints(context.Background(), src, Query{Granularity: Hour, Guild: ref(guild)})
			require.NoError(t, err)
			for _, period := range scoped {
				if merged[period.Start] == nil {
					merged[period.Start] = map[CanonicalPair]int64{}
				}
				for _, row := range period.Pairs {
					merged[period.Start][CanonicalPair{User1: row.User1, User2: row.User2}] += row.Points
				}
			}
		}

		require.Len(t, unscoped, 1)
		require.Len(t, merged, 1)
		for _, row := range unscoped[0].Pairs {
			assert.Equal(t, row.Points, merged[unscoped[0].Start][CanonicalPair{User1: row.User1, User2: row.User2}])
		}
	})

	t.Run("empty scope result is a success", func(t *testing.T) {
		src := &sliceSource{msgs: conversation}

		got, err := ComputePoints(context.Background(), src, Query{Granularity: Hour, Guild: ref(99)})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown granularity is rejected before any read", func(t *testing.T) {
		src := &sliceSource{msgs: conversation}

		_, err := ComputePoints(context.Background(), src, Query{Granularity: "fortnight"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownGranularity)
		assert.Zero(t, src.calls)
	})

	t.Run("snapshot read failure propagates", func(t *testing.T) {
		readErr := errors.New("connection refused")
		src := &failingSource{err: readErr}

		_, err := ComputePoints(context.Background(), src, Query{Granularity: Hour})
		require.Error(t, err)
		assert.ErrorIs(t, err, readErr)
	})
}
