package engine

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the calendar unit points are bucketed by. The supported
// tokens mirror the units DATE_TRUNC understands, and truncation follows
// the same conventions: weeks start on Monday, decades on years divisible
// by ten, centuries and millennia on years ending in 01.
type Granularity string

// Supported granularities, smallest to largest.
const (
	Microsecond Granularity = "microsecond"
	Millisecond Granularity = "millisecond"
	Second      Granularity = "second"
	Minute      Granularity = "minute"
	Hour        Granularity = "hour"
	Day         Granularity = "day"
	Week        Granularity = "week"
	Month       Granularity = "month"
	Quarter     Granularity = "quarter"
	Year        Granularity = "year"
	Decade      Granularity = "decade"
	Century     Granularity = "century"
	Millennium  Granularity = "millennium"
)

var granularityOrder = []Granularity{
	Microsecond, Millisecond, Second, Minute, Hour, Day,
	Week, Month, Quarter, Year, Decade, Century, Millennium,
}

var granularitySet = func() map[Granularity]struct{} {
	set := make(map[Granularity]struct{}, len(granularityOrder))
	for _, g := range granularityOrder {
		set[g] = struct{}{}
	}
	return set
}()

// ParseGranularity parses a granularity token. Matching is
// case-insensitive; anything outside the supported set is an error, never
// silently defaulted.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := granularitySet[g]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
	return g, nil
}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	_, ok := granularitySet[g]
	return ok
}

// Granularities returns the supported tokens, smallest unit first.
func Granularities() []string {
	out := make([]string, len(granularityOrder))
	for i, g := range granularityOrder {
		out[i] = string(g)
	}
	return out
}

// Truncate returns the first instant of the period containing t, in UTC.
// Truncation is monotonic: t1 <= t2 implies Truncate(t1) <= Truncate(t2).
// Calling Truncate on an unparsed granularity returns t unchanged; callers
// validate first.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Microsecond:
		return t.Truncate(time.Microsecond)
	case Millisecond:
		return t.Truncate(time.Millisecond)
	case Second:
		return t.Truncate(time.Second)
	case Minute:
		return t.Truncate(time.Minute)
	case Hour:
		return t.Truncate(time.Hour)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		monday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -monday)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Quarter:
		month := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case Decade:
		return time.Date(t.Year()-t.Year()%10, 1, 1, 0, 0, 0, 0, time.UTC)
	case Century:
		return time.Date((t.Year()-1)/100*100+1, 1, 1, 0, 0, 0, 0, time.UTC)
	case Millennium:
		return time.Date((t.Year()-1)/1000*1000+1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}
