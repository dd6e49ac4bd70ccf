package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LoadLocation("utc")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestDayKey_FixedZone(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	ts := time.Date(2026, 1, 31, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-31", DayKey(ts, time.UTC))
	assert.Equal(t, "2026-02-01", DayKey(ts, plus5))
	assert.Equal(t, "2026-01-31", DayKey(ts, nil))
}

func TestStartEndOfDay(t *testing.T) {
	ts := time.Date(2026, 7, 4, 15, 4, 5, 0, time.UTC)

	start := StartOfDay(ts, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), start)

	end := EndOfDay(ts, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 4, 23, 59, 59, 999999999, time.UTC), end)

	assert.Equal(t, 8*time.Hour+55*time.Minute+55*time.Second, UntilNextDay(ts, time.UTC))
}

func TestIsSameDayAndDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

	assert.True(t, IsSameDay(a, b, time.UTC))
	assert.False(t, IsSameDay(a, c, time.UTC))
	assert.Equal(t, 0, DaysBetween(a, b, time.UTC))
	assert.Equal(t, 3, DaysBetween(a, c, time.UTC))
	assert.Equal(t, -3, DaysBetween(c, a, time.UTC))
}

func TestParseDayKey(t *testing.T) {
	d, err := ParseDayKey("2026-02-28", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDayKey("28.02.2026", time.UTC)
	assert.Error(t, err)
}

func TestClocks(t *testing.T) {
	fixed := FixedClock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, fixed.T, fixed.Now())
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}
