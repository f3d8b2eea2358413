package schedule

import "time"

// Semester - границы учебного семестра.
type Semester struct {
	Start time.Time
	End   time.Time
}

// NewSemester нормализует границы до календарных дат.
func NewSemester(start, end time.Time) Semester {
	s := Semester{Start: DateOf(start)}
	if !end.IsZero() {
		s.End = DateOf(end)
	}
	return s
}

// WeekOf возвращает номер учебной недели для даты.
// До начала семестра - 0. Воскресенье относится к следующей неделе.
func (s Semester) WeekOf(date time.Time) int {
	d := DateOf(date)
	if d.Before(s.Start) {
		return 0
	}

	days := int(d.Sub(s.Start).Hours() / 24)
	week := days/7 + 1
	if d.Weekday() == time.Sunday {
		week++
	}
	return week
}

// Contains проверяет, что дата внутри семестра.
// Семестр без конца открыт справа.
func (s Semester) Contains(date time.Time) bool {
	d := DateOf(date)
	if d.Before(s.Start) {
		return false
	}
	return s.End.IsZero() || !d.After(s.End)
}

// Days возвращает все даты семестра по порядку.
// Для семестра без конца возвращает nil.
func (s Semester) Days(skipSunday bool) []time.Time {
	if s.End.IsZero() || s.End.Before(s.Start) {
		return nil
	}

	days := make([]time.Time, 0, int(s.End.Sub(s.Start).Hours()/24)+1)
	for d := s.Start; !d.After(s.End); d = d.AddDate(0, 0, 1) {
		if skipSunday && d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}
