package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time { return f.t }

func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestAllowWithinLimit(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	l := NewSlidingWindowLimiter(3, time.Minute, ft.now)

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestWindowSlides(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	l := NewSlidingWindowLimiter(2, time.Minute, ft.now)

	assert.True(t, l.Allow("k"))
	ft.advance(30 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	// First event ages out, freeing one slot
	ft.advance(31 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestKeysAreIndependent(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	l := NewSlidingWindowLimiter(1, time.Minute, ft.now)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestReset(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	l := NewSlidingWindowLimiter(1, time.Minute, ft.now)

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestRejectedCallsDoNotExtendTheWindow(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	l := NewSlidingWindowLimiter(1, time.Minute, ft.now)

	assert.True(t, l.Allow("k"))
	for i := 0; i < 5; i++ {
		ft.advance(10 * time.Second)
		assert.False(t, l.Allow("k"))
	}

	// 61s after the only accepted event the key is free again
	ft.advance(11 * time.Second)
	assert.True(t, l.Allow("k"))
}
