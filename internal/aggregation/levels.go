package aggregation

import "time"

// Granularity selects how a timestamp maps to a day bucket key
type Granularity int

const (
	// GranularityDayOfMonth keys by calendar day number (1..daysInMonth).
	// Only meaningful for timestamps inside one known month.
	GranularityDayOfMonth Granularity = iota
	// GranularityDayInRange keys by the start-of-day timestamp in milliseconds,
	// so keys stay comparable across month boundaries.
	GranularityDayInRange
)

func (g Granularity) String() string {
	switch g {
	case GranularityDayOfMonth:
		return "dayOfMonth"
	case GranularityDayInRange:
		return "dayInRange"
	default:
		return "unknown"
	}
}

// Calendar performs calendar arithmetic in a fixed location.
// No timezone normalization happens beyond interpreting epoch milliseconds in that location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for loc (UTC when nil)
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's location
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Time converts epoch milliseconds to a time in the calendar's location
func (c Calendar) Time(ms int64) time.Time {
	return time.UnixMilli(ms).In(c.Location())
}

// TruncateToDay truncates t to midnight in the calendar's location
func (c Calendar) TruncateToDay(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// TruncateToMonth truncates t to the first day of its month
func (c Calendar) TruncateToMonth(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.Location())
}

// StartOfDay returns midnight of the day containing ms, in milliseconds
func (c Calendar) StartOfDay(ms int64) int64 {
	return c.TruncateToDay(c.Time(ms)).UnixMilli()
}

// Assign maps a timestamp to its bucket key. It is a pure function of its inputs.
func (c Calendar) Assign(ms int64, g Granularity) int64 {
	switch g {
	case GranularityDayOfMonth:
		return int64(c.Time(ms).Day())
	default:
		return c.StartOfDay(ms)
	}
}

// DaysInMonth returns the number of days of a 0-based month
func (c Calendar) DaysInMonth(month, year int) int {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, c.Location())
	return first.AddDate(0, 1, -1).Day()
}

// MonthBounds returns the first and last millisecond of a 0-based month, both inclusive
func (c Calendar) MonthBounds(month, year int) (int64, int64) {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, c.Location())
	next := first.AddDate(0, 1, 0)
	return first.UnixMilli(), next.UnixMilli() - 1
}

// EndOfDay returns the last millisecond of the day containing ms
func (c Calendar) EndOfDay(ms int64) int64 {
	start := c.TruncateToDay(c.Time(ms))
	return start.AddDate(0, 0, 1).UnixMilli() - 1
}

// MonthDayKeys returns the ordered day-of-month keys 1..daysInMonth
func (c Calendar) MonthDayKeys(month, year int) []int64 {
	n := c.DaysInMonth(month, year)
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i + 1)
	}
	return keys
}

// DayCount returns how many calendar days DayKeys(startMs, endMs) would
// produce, without building them
func (c Calendar) DayCount(startMs, endMs int64) int64 {
	first, last := c.Time(startMs), c.Time(endMs)
	a := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	if b.Before(a) {
		return 0
	}
	return (b.Unix()-a.Unix())/86400 + 1
}

// DayKeys returns the start-of-day keys of every calendar day between the
// days containing startMs and endMs, inclusive. Days are stepped with
// AddDate so DST transitions do not skip or repeat a day.
func (c Calendar) DayKeys(startMs, endMs int64) []int64 {
	day := c.TruncateToDay(c.Time(startMs))
	last := c.TruncateToDay(c.Time(endMs))

	var keys []int64
	for !day.After(last) {
		keys = append(keys, day.UnixMilli())
		day = day.AddDate(0, 0, 1)
	}
	return keys
}
