package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRangeParser_Relative(t *testing.T) {
	trp := NewTimeRangeParser()

	before := time.Now().UTC()
	got, err := trp.ParseRelativeTime("last 24h")
	require.NoError(t, err)
	after := time.Now().UTC()

	assert.True(t, got.After(before.Add(-24*time.Hour-time.Second)))
	assert.True(t, got.Before(after.Add(-24*time.Hour+time.Second)))

	_, err = trp.ParseRelativeTime("last 7d")
	assert.NoError(t, err)
	_, err = trp.ParseRelativeTime("last 2 weeks")
	assert.NoError(t, err)

	_, err = trp.ParseRelativeTime("yesterday")
	assert.Error(t, err)
}

func TestTimeRangeParser_Absolute(t *testing.T) {
	trp := NewTimeRangeParser()

	got, err := trp.ParseAbsoluteTime("2026-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), got)

	got, err = trp.ParseAbsoluteTime("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = trp.ParseAbsoluteTime("not a time")
	assert.Error(t, err)
}

func TestTimeRangeParser_ParseWindow(t *testing.T) {
	trp := NewTimeRangeParser()

	start, end, err := trp.ParseWindow("", "")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())

	start, end, err = trp.ParseWindow("2026-03-01", "2026-03-02")
	require.NoError(t, err)
	assert.True(t, start.Before(end))

	_, _, err = trp.ParseWindow("2026-03-02", "2026-03-01")
	assert.Error(t, err)

	_, _, err = trp.ParseWindow("bogus", "")
	assert.Error(t, err)
}
