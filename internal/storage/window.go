package storage

import "math"

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
)

// secondsBefore returns the Unix time n units of unitSeconds before now.
// Windows reaching past the representable range clamp to the earliest
// timestamp instead of wrapping around into the future.
func secondsBefore(now int64, n int, unitSeconds int64) int64 {
	if n <= 0 {
		return now
	}

	span := int64(n)
	if span > math.MaxInt64/unitSeconds {
		return math.MinInt64
	}
	span *= unitSeconds

	if now < math.MinInt64+span {
		return math.MinInt64
	}
	return now - span
}

func (s *Store) hoursAgo(hours int) int64 {
	return secondsBefore(s.now().Unix(), hours, secondsPerHour)
}

func (s *Store) minutesAgo(minutes int) int64 {
	return secondsBefore(s.now().Unix(), minutes, secondsPerMinute)
}
