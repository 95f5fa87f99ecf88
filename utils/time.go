package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock evaluates all scheduling decisions in one fixed civil time zone,
// regardless of the host zone. It is constructed once at startup and
// injected into every consumer.
type Clock struct {
	loc *time.Location
}

// NewClock loads the given IANA time zone. An empty name falls back to
// DefaultTimezone.
func NewClock(tz string) (*Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", tz, err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current time in the configured zone.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the configured zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// In converts a time to the configured zone.
func (c *Clock) In(t time.Time) time.Time {
	return t.In(c.loc)
}

// parseBusinessHours parses a "HH:MM-HH:MM" range into start/end minutes
// since midnight.
func parseBusinessHours(hours string) (start, end int, err error) {
	parts := strings.Split(hours, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid business hours format: %q", hours)
	}
	start, err = parseClockMinutes(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err = parseClockMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClockMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value out of range: %q", s)
	}
	return h*60 + m, nil
}

// ValidBusinessHours reports whether hours is a well formed "HH:MM-HH:MM"
// range.
func ValidBusinessHours(hours string) bool {
	_, _, err := parseBusinessHours(hours)
	return err == nil
}

// IsBusinessHours reports whether t falls inside the "HH:MM-HH:MM" range.
// Overnight ranges (end < start, e.g. "23:00-02:00") wrap past midnight.
// A malformed range reports false: blocking a send for a misconfigured
// shop is preferred over sending outside its intended hours.
func (c *Clock) IsBusinessHours(t time.Time, hours string) bool {
	start, end, err := parseBusinessHours(hours)
	if err != nil {
		return false
	}
	local := t.In(c.loc)
	current := local.Hour()*60 + local.Minute()

	if end < start {
		return current >= start || current <= end
	}
	return current >= start && current <= end
}

// RecommendedSendTime returns the requested time unchanged when it falls
// inside the shop's business hours, otherwise the start of the next day's
// range. A malformed range falls back to one hour after the request.
func (c *Clock) RecommendedSendTime(hours string, requested time.Time) time.Time {
	if c.IsBusinessHours(requested, hours) {
		return requested
	}
	start, _, err := parseBusinessHours(hours)
	if err != nil {
		return requested.Add(time.Hour)
	}
	local := requested.In(c.loc)
	next := local.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), start/60, start%60, 0, 0, c.loc)
}

// IsDue reports whether a scheduled send time falls within tolerance of the
// current instant, boundary inclusive. The tolerance is what lets a
// once-per-minute scan catch campaigns scheduled between ticks.
func (c *Clock) IsDue(scheduled, current time.Time, tolerance time.Duration) bool {
	diff := current.Sub(scheduled)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// Send timing choices offered by the dashboard.
const (
	SendTimingNow       = "now"
	SendTimingInOneHour = "in1hour"
	SendTimingTomorrow9 = "tomorrow9am"
)

// CalculateSendTime maps a timing choice onto a concrete send time relative
// to base. A nil result means "send immediately".
func (c *Clock) CalculateSendTime(timing string, base time.Time) (*time.Time, error) {
	base = base.In(c.loc)
	switch timing {
	case SendTimingNow:
		return nil, nil
	case SendTimingInOneHour:
		t := base.Add(time.Hour)
		return &t, nil
	case SendTimingTomorrow9:
		next := base.AddDate(0, 0, 1)
		t := time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, c.loc)
		return &t, nil
	default:
		return nil, fmt.Errorf("invalid send timing: %q", timing)
	}
}
