package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSemester_WeekOf(t *testing.T) {
	// 01.09.2025 - понедельник
	s := NewSemester(NewDate(2025, 9, 1), NewDate(2025, 12, 31))

	assert.Equal(t, 0, s.WeekOf(NewDate(2025, 8, 31)))
	assert.Equal(t, 1, s.WeekOf(NewDate(2025, 9, 1)))
	assert.Equal(t, 1, s.WeekOf(NewDate(2025, 9, 6)))
	assert.Equal(t, 2, s.WeekOf(NewDate(2025, 9, 7)), "sunday belongs to the next week")
	assert.Equal(t, 2, s.WeekOf(NewDate(2025, 9, 8)))
	assert.Equal(t, 3, s.WeekOf(time.Date(2025, 9, 15, 23, 59, 0, 0, time.UTC)))
}

func TestSemester_Contains(t *testing.T) {
	s := NewSemester(NewDate(2025, 9, 1), NewDate(2025, 9, 30))

	assert.False(t, s.Contains(NewDate(2025, 8, 31)))
	assert.True(t, s.Contains(NewDate(2025, 9, 1)))
	assert.True(t, s.Contains(NewDate(2025, 9, 30)))
	assert.False(t, s.Contains(NewDate(2025, 10, 1)))

	open := NewSemester(NewDate(2025, 9, 1), time.Time{})
	assert.True(t, open.Contains(NewDate(2030, 1, 1)))
}

func TestSemester_Days(t *testing.T) {
	s := NewSemester(NewDate(2025, 9, 1), NewDate(2025, 9, 14))

	all := s.Days(false)
	assert.Len(t, all, 14)

	weekdays := s.Days(true)
	assert.Len(t, weekdays, 12)
	for _, d := range weekdays {
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}

	assert.Nil(t, NewSemester(NewDate(2025, 9, 1), time.Time{}).Days(true))
}
