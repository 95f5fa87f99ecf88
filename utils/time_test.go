package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(t *testing.T) *Clock {
	t.Helper()
	clock, err := NewClock("Asia/Tokyo")
	require.NoError(t, err)
	return clock
}

func tokyoTime(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return time.Date(2025, 6, 15, hour, minute, 0, 0, loc)
}

func TestIsBusinessHours(t *testing.T) {
	clock := newTestClock(t)

	// Regular daytime range
	assert.True(t, clock.IsBusinessHours(tokyoTime(t, 12, 0), "11:00-23:00"))
	assert.True(t, clock.IsBusinessHours(tokyoTime(t, 11, 0), "11:00-23:00"))
	assert.True(t, clock.IsBusinessHours(tokyoTime(t, 23, 0), "11:00-23:00"))
	assert.False(t, clock.IsBusinessHours(tokyoTime(t, 23, 30), "11:00-23:00"))
	assert.False(t, clock.IsBusinessHours(tokyoTime(t, 10, 59), "11:00-23:00"))

	// Overnight range wraps past midnight
	assert.True(t, clock.IsBusinessHours(tokyoTime(t, 23, 30), "23:00-02:00"))
	assert.True(t, clock.IsBusinessHours(tokyoTime(t, 1, 0), "23:00-02:00"))
	assert.False(t, clock.IsBusinessHours(tokyoTime(t, 12, 0), "23:00-02:00"))
}

func TestIsBusinessHoursMalformedRangeFailsClosed(t *testing.T) {
	clock := newTestClock(t)

	for _, hours := range []string{"", "garbage", "11:00", "11:00-23", "25:00-26:00", "aa:bb-cc:dd", "11:00-23:00-01:00"} {
		assert.False(t, clock.IsBusinessHours(tokyoTime(t, 12, 0), hours), "range %q should report closed", hours)
	}
}

func TestIsBusinessHoursConvertsZone(t *testing.T) {
	clock := newTestClock(t)

	// 03:00 UTC is 12:00 in Tokyo
	utc := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	assert.True(t, clock.IsBusinessHours(utc, "11:00-23:00"))
}

func TestRecommendedSendTime(t *testing.T) {
	clock := newTestClock(t)

	// Inside business hours: unchanged
	inside := tokyoTime(t, 12, 0)
	assert.Equal(t, inside, clock.RecommendedSendTime("11:00-23:00", inside))

	// Outside: next day's range start
	outside := tokyoTime(t, 23, 30)
	got := clock.RecommendedSendTime("11:00-23:00", outside)
	assert.Equal(t, 16, got.Day())
	assert.Equal(t, 11, got.Hour())
	assert.Equal(t, 0, got.Minute())

	// Malformed range: one hour later fallback
	assert.Equal(t, outside.Add(time.Hour), clock.RecommendedSendTime("broken", outside))
}

func TestIsDue(t *testing.T) {
	clock := newTestClock(t)
	scheduled := tokyoTime(t, 12, 0)

	assert.True(t, clock.IsDue(scheduled, scheduled, DefaultDueTolerance))
	assert.True(t, clock.IsDue(scheduled, scheduled.Add(60*time.Second), DefaultDueTolerance))
	assert.True(t, clock.IsDue(scheduled, scheduled.Add(-60*time.Second), DefaultDueTolerance))
	assert.False(t, clock.IsDue(scheduled, scheduled.Add(61*time.Second), DefaultDueTolerance))
	assert.False(t, clock.IsDue(scheduled, scheduled.Add(-61*time.Second), DefaultDueTolerance))
}

func TestCalculateSendTime(t *testing.T) {
	clock := newTestClock(t)
	base := tokyoTime(t, 18, 30)

	immediate, err := clock.CalculateSendTime(SendTimingNow, base)
	assert.NoError(t, err)
	assert.Nil(t, immediate)

	inOneHour, err := clock.CalculateSendTime(SendTimingInOneHour, base)
	assert.NoError(t, err)
	require.NotNil(t, inOneHour)
	assert.Equal(t, base.Add(time.Hour), *inOneHour)

	tomorrow, err := clock.CalculateSendTime(SendTimingTomorrow9, base)
	assert.NoError(t, err)
	require.NotNil(t, tomorrow)
	assert.Equal(t, 16, tomorrow.Day())
	assert.Equal(t, 9, tomorrow.Hour())
	assert.Equal(t, 0, tomorrow.Minute())

	_, err = clock.CalculateSendTime("next-week", base)
	assert.Error(t, err)
}

func TestNewClockRejectsUnknownZone(t *testing.T) {
	_, err := NewClock("Not/AZone")
	assert.Error(t, err)
}
