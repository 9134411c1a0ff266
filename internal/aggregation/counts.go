package aggregation

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrUnknownTimeUnit is returned for an unsupported count granularity
var ErrUnknownTimeUnit = errors.New("unknown time unit")

// TimeUnit is the granularity of an occurrence count rollup
type TimeUnit string

const (
	TimeUnitHourOfDay  TimeUnit = "hourOfDay"
	TimeUnitDayOfMonth TimeUnit = "dayOfMonth"
	TimeUnitDay        TimeUnit = "day"
	TimeUnitWeek       TimeUnit = "week"
	TimeUnitMonth      TimeUnit = "month"
	TimeUnitYear       TimeUnit = "year"
)

// ParseTimeUnit validates a time unit name
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch u := TimeUnit(s); u {
	case TimeUnitHourOfDay, TimeUnitDayOfMonth, TimeUnitDay, TimeUnitWeek, TimeUnitMonth, TimeUnitYear:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeUnit, s)
	}
}

// TimeUnitKey formats the calendar key of t for a count rollup.
// Months are 0-based; day of year is 1-based.
//
//	hourOfDay  "<hour>-<dayOfYear>-<year>"
//	dayOfMonth "<dayOfMonth>-<month>-<year>"
//	day        "<dayOfYear>-<year>"
//	week       "<weekOfYear>-<year>"
//	month      "<month>-<year>"
//	year       "<year>"
func TimeUnitKey(t time.Time, unit TimeUnit) (string, error) {
	year := strconv.Itoa(t.Year())
	switch unit {
	case TimeUnitHourOfDay:
		return strconv.Itoa(t.Hour()) + "-" + strconv.Itoa(t.YearDay()) + "-" + year, nil
	case TimeUnitDayOfMonth:
		return strconv.Itoa(t.Day()) + "-" + strconv.Itoa(int(t.Month())-1) + "-" + year, nil
	case TimeUnitDay:
		return strconv.Itoa(t.YearDay()) + "-" + year, nil
	case TimeUnitWeek:
		return strconv.Itoa(WeekOfYear(t)) + "-" + year, nil
	case TimeUnitMonth:
		return strconv.Itoa(int(t.Month())-1) + "-" + year, nil
	case TimeUnitYear:
		return year, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeUnit, unit)
	}
}

// WeekOfYear numbers weeks starting on Sunday, with week 1 being the week that
// contains January 1. The last days of December that share a week with the
// next January 1 are therefore in week 1.
func WeekOfYear(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	offset := int(jan1.Weekday())
	week := (t.YearDay()+offset-1)/7 + 1

	daysInYear := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location()).YearDay()
	nextOffset := (offset + daysInYear) % 7
	weeks := (daysInYear + offset - nextOffset) / 7
	if week > weeks {
		week -= weeks
	}
	return week
}

// CountByTimeUnit groups occurrence timestamps (epoch ms) by calendar key in loc
func CountByTimeUnit(timestamps []int64, unit TimeUnit, loc *time.Location) (map[string]int, error) {
	if _, err := ParseTimeUnit(string(unit)); err != nil {
		return nil, err
	}
	cal := NewCalendar(loc)

	counts := make(map[string]int)
	for _, ms := range timestamps {
		key, err := TimeUnitKey(cal.Time(ms), unit)
		if err != nil {
			return nil, err
		}
		counts[key]++
	}
	return counts, nil
}
