package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"alcyxob/workout-planner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFor_Contiguous(t *testing.T) {
	loc, err := LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	// Spans the 2024-03-31 DST switch in Madrid.
	start, err := ParseDate("2024-03-27", loc)
	require.NoError(t, err)

	prev := ""
	for i := 1; i <= 21; i++ {
		d := DateFor(start, i)
		assert.Equal(t, 0, d.Hour(), "day %d must stay at midnight", i)
		s := FormatDate(d, loc)
		if prev != "" {
			assert.Greater(t, s, prev)
			p, _ := ParseDate(prev, loc)
			assert.Equal(t, s, FormatDate(p.AddDate(0, 0, 1), loc))
		}
		prev = s
		assert.Equal(t, i, DayIndexOf(start, d))
	}
	assert.Equal(t, "2024-04-16", prev)
}

func TestDayOfWeek(t *testing.T) {
	start, err := ParseDate("2024-01-03", time.UTC) // Wednesday
	require.NoError(t, err)
	assert.Equal(t, domain.Wednesday, DayOfWeek(start))
	assert.Equal(t, domain.Sunday, DayOfWeek(DateFor(start, 5)))
	assert.Equal(t, domain.Monday, DayOfWeek(DateFor(start, 6)))
}

func TestWeekNumber(t *testing.T) {
	assert.Equal(t, 1, WeekNumber(1))
	assert.Equal(t, 1, WeekNumber(7))
	assert.Equal(t, 2, WeekNumber(8))
	assert.Equal(t, 4, WeekNumber(28))
}

func TestMidnight_UsesLocation(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	// 02:30 UTC on Jan 2 is still Jan 1 in New York.
	instant := time.Date(2024, 1, 2, 2, 30, 0, 0, time.UTC)
	m := Midnight(instant, loc)
	assert.Equal(t, "2024-01-01", FormatDate(m, loc))
	assert.Equal(t, 0, m.Hour())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}
