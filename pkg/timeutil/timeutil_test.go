package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withNow(t *testing.T, now time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = prev })
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("08.09.2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-09-08")
	require.NoError(t, err)
	assert.Equal(t, "08.09.2025", FormatDate(d))

	_, err = ParseDate("8 Sep")
	assert.Error(t, err)
}

func TestToday_UsesMoscowCalendar(t *testing.T) {
	// 22:30 UTC is already the next day in Moscow.
	withNow(t, time.Date(2025, 9, 7, 22, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), Today())
}

func TestTodaySkippingSunday(t *testing.T) {
	withNow(t, time.Date(2025, 9, 7, 9, 0, 0, 0, MoscowTZ))

	assert.Equal(t, time.Monday, TodaySkippingSunday().Weekday())
	assert.Equal(t, 8, TodaySkippingSunday().Day())
}

func TestTomorrowSkippingSunday(t *testing.T) {
	withNow(t, time.Date(2025, 9, 6, 23, 30, 0, 0, MoscowTZ))
	assert.Equal(t, 8, TomorrowSkippingSunday().Day(), "Saturday rolls over to Monday")

	withNow(t, time.Date(2025, 9, 8, 0, 10, 0, 0, MoscowTZ))
	assert.Equal(t, 9, TomorrowSkippingSunday().Day())
}

func TestWeekdayNameRu(t *testing.T) {
	assert.Equal(t, "Понедельник", WeekdayNameRu(time.Date(2025, 9, 8, 5, 0, 0, 0, MoscowTZ)))
	assert.Equal(t, "Воскресенье", WeekdayNameRu(time.Date(2025, 9, 7, 5, 0, 0, 0, MoscowTZ)))
}
