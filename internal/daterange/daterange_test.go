package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 3, 14, 15, 30, 0, 0, loc)

	at := func(y int, m time.Month, d, h, min int) *time.Time {
		v := time.Date(y, m, d, h, min, 0, 0, loc)
		return &v
	}

	tests := []struct {
		name  string
		key   Key
		since *time.Time
		until *time.Time
	}{
		{name: "today", key: Today, since: at(2025, 3, 14, 0, 0), until: &now},
		{name: "yesterday", key: Yesterday, since: at(2025, 3, 13, 0, 0), until: at(2025, 3, 14, 0, 0)},
		{name: "last 7 days", key: Last7Days, since: ptr(now.Add(-7 * 24 * time.Hour))},
		{name: "last 30 days", key: Last30Days, since: ptr(now.Add(-30 * 24 * time.Hour))},
		{name: "month", key: Month, since: at(2025, 3, 1, 0, 0)},
		{name: "all", key: All},
		{name: "unknown key falls back to all", key: Key("fortnight")},
		{name: "empty key falls back to all", key: Key("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Resolve(tt.key, now)
			assertTime(t, tt.since, b.Since)
			assertTime(t, tt.until, b.Until)
		})
	}
}

func TestResolve_YesterdayAcrossMonthBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)

	b := Resolve(Yesterday, now)

	require.NotNil(t, b.Since)
	require.NotNil(t, b.Until)
	assert.True(t, b.Since.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.True(t, b.Until.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolve_UsesLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 2025-06-10 23:00 UTC is already 2025-06-11 08:00 in UTC+9
	now := time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC).In(loc)

	b := Resolve(Today, now)

	require.NotNil(t, b.Since)
	assert.Equal(t, 11, b.Since.Day())
	assert.Equal(t, 0, b.Since.Hour())
}

func TestResolve_SinceNeverAfterUntil(t *testing.T) {
	instants := []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 59, 999, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 4, 12, 0, 0, 0, time.FixedZone("X", -5*60*60)),
	}

	for _, now := range instants {
		for _, key := range Keys {
			b := Resolve(key, now)
			if b.Since != nil && b.Until != nil {
				assert.False(t, b.Since.After(*b.Until), "key %s at %s", key, now)
			}
		}
	}
}

func TestResolve_BoundShapes(t *testing.T) {
	now := time.Now()

	for _, key := range []Key{Today, Yesterday} {
		b := Resolve(key, now)
		assert.NotNil(t, b.Since, key)
		assert.NotNil(t, b.Until, key)
	}
	for _, key := range []Key{Last7Days, Last30Days, Month} {
		b := Resolve(key, now)
		assert.NotNil(t, b.Since, key)
		assert.Nil(t, b.Until, key)
	}
	b := Resolve(All, now)
	assert.Nil(t, b.Since)
	assert.Nil(t, b.Until)
}

func TestKeyValid(t *testing.T) {
	for _, key := range Keys {
		assert.True(t, key.Valid())
	}
	assert.False(t, Key("last_7_days").Valid())
	assert.False(t, Key("").Valid())
}

func assertTime(t *testing.T, expected, actual *time.Time) {
	t.Helper()
	if expected == nil {
		assert.Nil(t, actual)
		return
	}
	require.NotNil(t, actual)
	assert.True(t, expected.Equal(*actual), "expected %s, got %s", expected, actual)
}

func ptr(t time.Time) *time.Time {
	return &t
}
