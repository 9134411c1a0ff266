package aggregation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

func voltageRecord(boxID string, ts int64, min, max, avg float64) models.TrendRecord {
	return models.TrendRecord{BoxID: boxID, TimestampMs: ts, Voltage: sample(min, max, avg)}
}

// january2024 holds two records on Jan 1 and one on Jan 2
func january2024() []models.TrendRecord {
	return []models.TrendRecord{
		voltageRecord("1", ms(2024, time.January, 1, 0, 0), 118, 120, 119),
		voltageRecord("1", ms(2024, time.January, 1, 0, 1), 117, 121, 119),
		voltageRecord("1", ms(2024, time.January, 2, 10, 0), 121, 123, 122),
	}
}

func TestRollupMonth_EndToEnd(t *testing.T) {
	records := january2024()

	rollup, err := RollupMonth("1", records, 0, 2024, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rollup.DailyTrends, 31)

	days := rollup.DailyByKey()

	day1 := days[1]
	require.NotNil(t, day1.Voltage)
	assert.Equal(t, 117.0, day1.Voltage.Min)
	assert.Equal(t, records[1].TimestampMs, day1.Voltage.MinDate)
	assert.Equal(t, 121.0, day1.Voltage.Max)
	assert.Equal(t, records[1].TimestampMs, day1.Voltage.MaxDate)
	assert.InDelta(t, 119.0, day1.Voltage.Average, 1e-9)
	assert.Equal(t, int64(2), day1.Voltage.Count)
	assert.Equal(t, int64(2), day1.TotalDocCount)
	require.NotNil(t, day1.Uptime)
	assert.InDelta(t, 2.0/1440*100, *day1.Uptime, 1e-9)
	assert.Nil(t, day1.Frequency)
	assert.Nil(t, day1.THD)

	day2 := days[2]
	require.NotNil(t, day2.Voltage)
	assert.Equal(t, 121.0, day2.Voltage.Min)
	assert.Equal(t, 123.0, day2.Voltage.Max)
	assert.InDelta(t, 122.0, day2.Voltage.Average, 1e-9)
	assert.Equal(t, int64(1), day2.Voltage.Count)

	day3 := days[3]
	assert.Nil(t, day3.Voltage)
	assert.Equal(t, int64(0), day3.TotalDocCount)
	require.NotNil(t, day3.Uptime)
	assert.Equal(t, 0.0, *day3.Uptime)

	monthly := rollup.MonthlyTrends
	require.NotNil(t, monthly.Voltage)
	assert.Equal(t, 117.0, monthly.Voltage.Min)
	assert.Equal(t, records[1].TimestampMs, monthly.Voltage.MinDate)
	assert.Equal(t, 123.0, monthly.Voltage.Max)
	assert.Equal(t, records[2].TimestampMs, monthly.Voltage.MaxDate)
	assert.InDelta(t, 120.5, monthly.Voltage.Average, 1e-9)
	assert.Equal(t, int64(2), monthly.Voltage.Count)
	assert.Equal(t, int64(3), monthly.TotalDocCount)
	require.NotNil(t, monthly.Uptime)
	assert.InDelta(t, 3.0/(1440*31)*100, *monthly.Uptime, 1e-9)
}

func TestRollupMonth_SingleBoxJanuary(t *testing.T) {
	records := []models.TrendRecord{
		voltageRecord("B1", ms(2024, time.January, 1, 8, 0), 119, 121, 120),
		voltageRecord("B1", ms(2024, time.January, 1, 9, 0), 117, 119, 118),
		voltageRecord("B1", ms(2024, time.January, 2, 8, 0), 121, 123, 122),
	}

	rollup, err := RollupMonth("B1", records, 0, 2024, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "B1", rollup.BoxID)
	days := rollup.DailyByKey()

	day1 := days[1]
	require.NotNil(t, day1.Voltage)
	assert.Equal(t, 117.0, day1.Voltage.Min)
	assert.Equal(t, 121.0, day1.Voltage.Max)
	assert.InDelta(t, 119.0, day1.Voltage.Average, 1e-9)
	assert.Equal(t, int64(2), day1.Voltage.Count)

	day2 := days[2]
	require.NotNil(t, day2.Voltage)
	assert.Equal(t, 121.0, day2.Voltage.Min)
	assert.Equal(t, 123.0, day2.Voltage.Max)
	assert.InDelta(t, 122.0, day2.Voltage.Average, 1e-9)
	assert.Equal(t, int64(1), day2.Voltage.Count)

	for d := int64(3); d <= 31; d++ {
		assert.Nil(t, days[d].Voltage, "day %d", d)
	}

	monthly := rollup.MonthlyTrends
	require.NotNil(t, monthly.Voltage)
	assert.InDelta(t, 120.5, monthly.Voltage.Average, 1e-9)
	assert.Equal(t, int64(2), monthly.Voltage.Count)
}

func TestRollupMonth_MeanOfDailyMeans(t *testing.T) {
	records := []models.TrendRecord{
		voltageRecord("1", ms(2024, time.March, 1, 0, 0), 100, 100, 100),
		voltageRecord("1", ms(2024, time.March, 1, 0, 1), 100, 100, 100),
		voltageRecord("1", ms(2024, time.March, 1, 0, 2), 100, 100, 100),
		voltageRecord("1", ms(2024, time.March, 2, 0, 0), 200, 200, 200),
	}

	rollup, err := RollupMonth("1", records, 2, 2024, DefaultOptions())
	require.NoError(t, err)

	// One sample per day, not per record
	assert.InDelta(t, 150.0, rollup.MonthlyTrends.Voltage.Average, 1e-9)
	assert.Equal(t, int64(2), rollup.MonthlyTrends.Voltage.Count)
	assert.Equal(t, int64(4), rollup.MonthlyTrends.TotalDocCount)
}

func TestRollupMonth_NoRecords(t *testing.T) {
	rollup, err := RollupMonth("1", nil, 0, 2024, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rollup.DailyTrends, 31)

	for _, day := range rollup.DailyTrends {
		assert.Nil(t, day.Voltage)
		assert.Nil(t, day.Frequency)
		assert.Nil(t, day.THD)
		assert.Equal(t, int64(0), day.TotalDocCount)
		require.NotNil(t, day.Uptime)
		assert.Equal(t, 0.0, *day.Uptime)
	}
	assert.Nil(t, rollup.MonthlyTrends.Voltage)
	assert.Equal(t, int64(0), rollup.MonthlyTrends.TotalDocCount)
}

func TestRollupMonth_LeapFebruary(t *testing.T) {
	rollup, err := RollupMonth("1", nil, 1, 2024, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, rollup.DailyTrends, 29)

	rollup, err = RollupMonth("1", nil, 1, 2023, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, rollup.DailyTrends, 28)
}

func TestRollupMonth_FullDayUptime(t *testing.T) {
	start := ms(2024, time.April, 10, 0, 0)
	records := make([]models.TrendRecord, 0, 1440)
	for i := 0; i < 1440; i++ {
		records = append(records, voltageRecord("7", start+int64(i)*60_000, 119, 121, 120))
	}

	rollup, err := RollupMonth("7", records, 3, 2024, DefaultOptions())
	require.NoError(t, err)

	day := rollup.DailyByKey()[10]
	assert.InDelta(t, 100.0, *day.Uptime, 1e-9)

	half, err := RollupMonth("7", records[:720], 3, 2024, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, *half.DailyByKey()[10].Uptime, 1e-9)
}

func TestRollupMonth_Errors(t *testing.T) {
	_, err := RollupMonth("1", nil, 12, 2024, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = RollupMonth("1", nil, -1, 2024, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidMonth)

	outside := []models.TrendRecord{voltageRecord("1", ms(2024, time.February, 1, 0, 0), 1, 2, 1.5)}
	_, err = RollupMonth("1", outside, 0, 2024, DefaultOptions())
	assert.ErrorIs(t, err, ErrOutOfRange)

	invalid := []models.TrendRecord{{BoxID: "", TimestampMs: ms(2024, time.January, 3, 0, 0)}}
	_, err = RollupMonth("1", invalid, 0, 2024, DefaultOptions())
	assert.ErrorIs(t, err, models.ErrInvalidRecord)

	otherBox := []models.TrendRecord{voltageRecord("2", ms(2024, time.January, 3, 0, 0), 1, 2, 1.5)}
	_, err = RollupMonth("1", otherBox, 0, 2024, DefaultOptions())
	assert.ErrorIs(t, err, models.ErrInvalidRecord)
}

func TestRollupMonth_MissingChannels(t *testing.T) {
	records := []models.TrendRecord{
		{BoxID: "1", TimestampMs: ms(2024, time.January, 5, 0, 0), Frequency: sample(59.9, 60.1, 60)},
		{BoxID: "1", TimestampMs: ms(2024, time.January, 5, 0, 1), Voltage: sample(119, 121, 120)},
		{BoxID: "1", TimestampMs: ms(2024, time.January, 5, 0, 2)},
	}

	rollup, err := RollupMonth("1", records, 0, 2024, DefaultOptions())
	require.NoError(t, err)

	day := rollup.DailyByKey()[5]
	assert.Equal(t, int64(3), day.TotalDocCount)
	require.NotNil(t, day.Voltage)
	assert.Equal(t, int64(1), day.Voltage.Count)
	require.NotNil(t, day.Frequency)
	assert.Equal(t, int64(1), day.Frequency.Count)
	assert.Nil(t, day.THD)
}

func TestRollupRange_SpansMonths(t *testing.T) {
	start := ms(2024, time.January, 31, 6, 0)
	end := ms(2024, time.February, 1, 18, 0)
	records := []models.TrendRecord{
		voltageRecord("1", ms(2024, time.January, 31, 7, 0), 118, 122, 120),
		voltageRecord("1", ms(2024, time.February, 1, 7, 0), 116, 124, 121),
		voltageRecord("1", ms(2024, time.February, 1, 8, 0), 117, 123, 119),
	}

	rollup, err := RollupRange("1", records, start, end, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rollup.DailyTrends, 2)

	jan31 := rollup.DailyByKey()[ms(2024, time.January, 31, 0, 0)]
	require.NotNil(t, jan31)
	assert.Equal(t, int64(1), jan31.TotalDocCount)

	feb1 := rollup.DailyByKey()[ms(2024, time.February, 1, 0, 0)]
	require.NotNil(t, feb1)
	assert.Equal(t, int64(2), feb1.TotalDocCount)
	assert.InDelta(t, 120.0, feb1.Voltage.Average, 1e-9)
	assert.InDelta(t, 2.0/1440*100, *feb1.Uptime, 1e-9)

	summary := rollup.RangeTrends
	assert.Nil(t, summary.Uptime)
	assert.Equal(t, int64(3), summary.TotalDocCount)
	assert.Equal(t, 116.0, summary.Voltage.Min)
	assert.Equal(t, 124.0, summary.Voltage.Max)
	assert.Equal(t, int64(2), summary.Voltage.Count)
}

func TestRollupRange_Errors(t *testing.T) {
	_, err := RollupRange("1", nil, 2000, 1000, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidRange)

	start := ms(2024, time.January, 10, 0, 0)
	end := ms(2024, time.January, 11, 0, 0)
	outside := []models.TrendRecord{voltageRecord("1", ms(2024, time.January, 20, 0, 0), 1, 2, 1.5)}
	_, err = RollupRange("1", outside, start, end, DefaultOptions())
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRollupRange_DayLimit(t *testing.T) {
	far := time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	_, err := RollupRange("1", nil, 1, far, DefaultOptions())
	require.ErrorIs(t, err, ErrInvalidRange)
	assert.Contains(t, err.Error(), "2932897 days")

	opts := DefaultOptions()
	opts.MaxRangeDays = 2
	_, err = RollupRange("1", nil, ms(2024, time.January, 1, 0, 0), ms(2024, time.January, 3, 0, 0), opts)
	assert.ErrorIs(t, err, ErrInvalidRange)

	rollup, err := RollupRange("1", nil, ms(2024, time.January, 1, 0, 0), ms(2024, time.January, 2, 23, 0), opts)
	require.NoError(t, err)
	assert.Len(t, rollup.DailyTrends, 2)

	opts.MaxRangeDays = 0
	_, err = RollupRange("1", nil, 1, far, opts)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRollupRange_MatchesMonth(t *testing.T) {
	records := january2024()
	start, end := NewCalendar(time.UTC).MonthBounds(0, 2024)

	monthly, err := RollupMonth("1", records, 0, 2024, DefaultOptions())
	require.NoError(t, err)
	ranged, err := RollupRange("1", records, start, end, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, ranged.DailyTrends, len(monthly.DailyTrends))
	for i := range monthly.DailyTrends {
		m, r := monthly.DailyTrends[i], ranged.DailyTrends[i]
		assert.Equal(t, m.Voltage, r.Voltage, "day %d", i+1)
		assert.Equal(t, m.TotalDocCount, r.TotalDocCount, "day %d", i+1)
	}
	assert.Equal(t, monthly.MonthlyTrends.Voltage, ranged.RangeTrends.Voltage)
}

func TestRollupJSON(t *testing.T) {
	rollup, err := RollupMonth("1", january2024(), 0, 2024, DefaultOptions())
	require.NoError(t, err)

	data, err := json.Marshal(rollup)
	require.NoError(t, err)

	var decoded struct {
		DailyTrends   map[string]map[string]any `json:"dailyTrends"`
		MonthlyTrends map[string]any            `json:"monthlyTrends"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Len(t, decoded.DailyTrends, 31)
	assert.Contains(t, decoded.DailyTrends["1"], "voltage")
	assert.NotContains(t, decoded.DailyTrends["3"], "voltage")
	assert.Contains(t, decoded.MonthlyTrends, "uptime")
	assert.EqualValues(t, 3, decoded.MonthlyTrends["totalDocCount"])
}
