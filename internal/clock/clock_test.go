package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestMonthBoundsNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	// 2026-03-01 05:00 KST is still February in UTC.
	start, _ := MonthBounds(time.Date(2026, time.March, 1, 5, 0, 0, 0, loc))
	assert.Equal(t, time.February, start.Month())
}

func TestFakeClockAdvance(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c.Advance(time.Hour)
	assert.Equal(t, 1, c.Now().Hour())
	c.Set(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.February, c.Now().Month())
}
