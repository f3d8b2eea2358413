// Package timeutil provides calendar helpers for the university timezone (Moscow, UTC+3).
//
// Calendar dates are represented as UTC midnight values so they compare and
// hash the same regardless of the server timezone.
package timeutil

import (
	"fmt"
	"time"
)

// MoscowTZ is the Moscow timezone (UTC+3, no DST since 2014).
var MoscowTZ = time.FixedZone("Europe/Moscow", 3*60*60)

const (
	// FeedDateLayout is the "dd.MM.yyyy" layout used by the schedule feed and the API.
	FeedDateLayout = "02.01.2006"

	// ISODateLayout is the "yyyy-MM-dd" layout.
	ISODateLayout = "2006-01-02"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// Now returns the current time in Moscow timezone.
func Now() time.Time {
	return nowFunc().In(MoscowTZ)
}

// CivilDate strips the clock and zone, keeping the calendar date of t as seen in t's zone.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns today's calendar date in Moscow.
func Today() time.Time {
	return CivilDate(Now())
}

// TodaySkippingSunday returns today's date, or Monday when today is Sunday.
func TodaySkippingSunday() time.Time {
	today := Today()
	if today.Weekday() == time.Sunday {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// TomorrowSkippingSunday returns tomorrow's date, or Monday when tomorrow is Sunday.
func TomorrowSkippingSunday() time.Time {
	tomorrow := Today().AddDate(0, 0, 1)
	if tomorrow.Weekday() == time.Sunday {
		return tomorrow.AddDate(0, 0, 1)
	}
	return tomorrow
}

// ParseDate accepts both "dd.MM.yyyy" and "yyyy-MM-dd".
func ParseDate(value string) (time.Time, error) {
	for _, layout := range []string{FeedDateLayout, ISODateLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected dd.MM.yyyy or yyyy-MM-dd", value)
}

// FormatDate formats a date as "dd.MM.yyyy".
func FormatDate(t time.Time) string {
	return t.Format(FeedDateLayout)
}

// WeekdayNameRu returns the Russian name for a weekday.
func WeekdayNameRu(t time.Time) string {
	switch t.Weekday() {
	case time.Monday:
		return "Понедельник"
	case time.Tuesday:
		return "Вторник"
	case time.Wednesday:
		return "Среда"
	case time.Thursday:
		return "Четверг"
	case time.Friday:
		return "Пятница"
	case time.Saturday:
		return "Суббота"
	case time.Sunday:
		return "Воскресенье"
	default:
		return ""
	}
}
