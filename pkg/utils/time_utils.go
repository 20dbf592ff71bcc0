package utils

import "time"

// Clock is injected into services so tests can pin "now".
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type FixedClock struct {
	T time.Time
}

func (f *FixedClock) Now() time.Time { return f.T }

func (f *FixedClock) Advance(d time.Duration) { f.T = f.T.Add(d) }

// LoadLocation falls back to UTC for unknown zone names.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}

// DayKey buckets a unix-nanosecond timestamp into a calendar day in loc.
func DayKey(unixNano int64, loc *time.Location) string {
	return time.Unix(0, unixNano).In(loc).Format("2006-01-02")
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func FormatRFC3339(unixSeconds int64) string {
	if unixSeconds <= 0 {
		return ""
	}
	return time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
}
