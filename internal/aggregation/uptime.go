package aggregation

import "time"

// DefaultSamplingInterval is the nominal spacing of trend records from one box
const DefaultSamplingInterval = time.Minute

// ExpectedRecordsPerDay returns how many records a box sampling at interval
// produces in a 24h day. One-minute sampling gives 1440.
func ExpectedRecordsPerDay(interval time.Duration) int64 {
	if interval <= 0 {
		interval = DefaultSamplingInterval
	}
	n := int64(24 * time.Hour / interval)
	if n < 1 {
		return 1
	}
	return n
}

// DeficitBasedUptime scores a period by how many expected records are missing.
// Used for day and month buckets of the monthly rollup.
func DeficitBasedUptime(count, expected int64) float64 {
	return (1 - float64(expected-count)/float64(expected)) * 100
}

// FractionBasedUptime scores a period as received over expected.
// Used for day buckets of the range rollup.
func FractionBasedUptime(count, expected int64) float64 {
	return (float64(count) / float64(expected)) * 100
}
