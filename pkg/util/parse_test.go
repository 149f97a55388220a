package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	require.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	require.True(t, ok)
	assert.True(t, got.Equal(want))

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	got, ok := ParseSince("90m", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(-90*time.Minute), got)

	got, ok = ParseSince("2026-01-01T00:00:00Z", now)
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())

	_, ok = ParseSince("-5m", now)
	assert.False(t, ok)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 25, ParseIntDefault("25", 7))
}
