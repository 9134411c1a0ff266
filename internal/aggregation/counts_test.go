package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeUnitKey(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		unit TimeUnit
		want string
	}{
		{TimeUnitHourOfDay, "14-75-2024"},
		{TimeUnitDayOfMonth, "15-2-2024"},
		{TimeUnitDay, "75-2024"},
		{TimeUnitWeek, "11-2024"},
		{TimeUnitMonth, "2-2024"},
		{TimeUnitYear, "2024"},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			got, err := TimeUnitKey(ts, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeUnitKey_Unknown(t *testing.T) {
	_, err := TimeUnitKey(time.Now(), TimeUnit("fortnight"))
	assert.ErrorIs(t, err, ErrUnknownTimeUnit)

	_, err = ParseTimeUnit("minute")
	assert.ErrorIs(t, err, ErrUnknownTimeUnit)

	unit, err := ParseTimeUnit("week")
	require.NoError(t, err)
	assert.Equal(t, TimeUnitWeek, unit)
}

func TestWeekOfYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		// 2024-01-01 is a Monday
		{time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC), 1},
		// Weeks start on Sunday
		{time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), 11},
		{time.Date(2024, time.December, 28, 0, 0, 0, 0, time.UTC), 52},
		// Shares a week with 2025-01-01
		{time.Date(2024, time.December, 29, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 1},
		// 2023-01-01 is a Sunday
		{time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2023, time.December, 30, 0, 0, 0, 0, time.UTC), 52},
		{time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekOfYear(tt.date), tt.date.Format("2006-01-02"))
	}
}

func TestCountByTimeUnit(t *testing.T) {
	timestamps := []int64{
		ms(2024, time.January, 1, 9, 0),
		ms(2024, time.January, 1, 9, 30),
		ms(2024, time.January, 1, 10, 0),
		ms(2024, time.February, 3, 9, 0),
	}

	byHour, err := CountByTimeUnit(timestamps, TimeUnitHourOfDay, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"9-1-2024": 2, "10-1-2024": 1, "9-34-2024": 1}, byHour)

	byMonth, err := CountByTimeUnit(timestamps, TimeUnitMonth, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0-2024": 3, "1-2024": 1}, byMonth)

	total := 0
	for _, n := range byMonth {
		total += n
	}
	assert.Equal(t, len(timestamps), total)

	empty, err := CountByTimeUnit(nil, TimeUnitYear, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = CountByTimeUnit(timestamps, TimeUnit("decade"), time.UTC)
	assert.ErrorIs(t, err, ErrUnknownTimeUnit)
}
