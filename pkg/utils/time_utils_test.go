package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
	assert.Equal(t, "UTC", LoadLocation("UTC").String())
}

func TestDayKeyAndStartOfDay(t *testing.T) {
	plus7 := time.FixedZone("UTC+7", 7*3600)
	at := time.Date(2025, 3, 10, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-10", DayKey(at.UnixNano(), time.UTC))
	assert.Equal(t, "2025-03-11", DayKey(at.UnixNano(), plus7))

	start := StartOfDay(at, plus7)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, plus7), start)
	assert.True(t, start.Before(at))
}

func TestFixedClock(t *testing.T) {
	clock := &FixedClock{T: time.Unix(100, 0)}
	clock.Advance(time.Minute)
	assert.Equal(t, int64(160), clock.Now().Unix())
}

func TestFormatRFC3339(t *testing.T) {
	assert.Equal(t, "", FormatRFC3339(0))
	assert.Equal(t, "2025-03-10T15:00:00Z", FormatRFC3339(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC).Unix()))
}
