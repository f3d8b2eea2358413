package schedule

import (
	"slices"
	"time"
)

// MergeChanges применяет журнал изменений к базовому расписанию дня.
//
// Порядок применения:
//  1. Переносы на date синтезируют новые занятия с исходной контрольной суммой.
//  2. Занятия, перенесённые куда угодно (или отменённые переносом), убираются из базы.
//  3. Правки на месте находятся по контрольной сумме: отмена удаляет занятие,
//     иначе применяются заданные переопределения. Сумма не меняется.
//  4. Остальные занятия проходят без изменений.
//
// Результат отсортирован по началу. Входные данные не изменяются.
//
// Перенос на дату без базовых занятий виден, только если эту дату запрашивают
// напрямую: вызывающий, который перебирает лишь дни с занятиями, его не увидит.
func MergeChanges(baseline []Lesson, changes []Change, date time.Time) []Lesson {
	var (
		moved   []Change
		inPlace = make(map[string][]Change)
	)
	for _, c := range changes {
		if c.IsMove() {
			moved = append(moved, c)
			continue
		}
		inPlace[c.OldControlSum] = append(inPlace[c.OldControlSum], c)
	}

	relocated := make(map[string]struct{}, len(moved))
	result := make([]Lesson, 0, len(baseline)+len(moved))

	for _, c := range moved {
		relocated[c.OldControlSum] = struct{}{}
		if c.Deleted || !SameDate(*c.NewDate, date) {
			continue
		}
		result = append(result, synthesizeMoved(c, baseline))
	}

	for _, l := range baseline {
		if _, ok := relocated[l.ControlSum]; ok {
			continue
		}

		edits, ok := inPlace[l.ControlSum]
		if !ok {
			result = append(result, l.Clone())
			continue
		}

		edited, keep := applyInPlace(l.Clone(), edits)
		if keep {
			result = append(result, edited)
		}
	}

	slices.SortStableFunc(result, func(a, b Lesson) int {
		return int(a.Start) - int(b.Start)
	})
	return result
}

// applyInPlace применяет правки по порядку; поздние переопределяют ранние.
func applyInPlace(l Lesson, edits []Change) (Lesson, bool) {
	for _, c := range edits {
		if c.Deleted {
			return Lesson{}, false
		}
		if c.Subject != nil {
			l.Subject = *c.Subject
		}
		if c.Type != nil {
			l.Type = *c.Type
		}
		l.Teacher = c.teacherOverride(l.Teacher)
		if c.Classroom != nil {
			l.Classroom = *c.Classroom
		}
		if c.NewStart != nil {
			l.Start = *c.NewStart
		}
		if c.NewEnd != nil {
			l.End = *c.NewEnd
		}
		if c.Description != nil {
			l.Description = *c.Description
		}
	}
	return l, true
}

// synthesizeMoved собирает занятие на новой дате.
// Незаданные поля берутся из исходного занятия, если оно есть в base.
func synthesizeMoved(c Change, base []Lesson) Lesson {
	var origin Lesson
	for _, l := range base {
		if l.ControlSum == c.OldControlSum {
			origin = l.Clone()
			break
		}
	}

	l := origin
	l.Group = c.Group
	l.Date = DateOf(*c.NewDate)
	l.Start = c.EffectiveStart()
	l.End = c.EffectiveEnd()
	l.ControlSum = c.OldControlSum
	l.Week = 0

	if c.Subject != nil {
		l.Subject = *c.Subject
	}
	if c.Type != nil {
		l.Type = *c.Type
	} else if l.Type == "" {
		l.Type = LessonLecture
	}
	l.Teacher = c.teacherOverride(l.Teacher)
	if c.Classroom != nil {
		l.Classroom = *c.Classroom
	}
	if c.Description != nil {
		l.Description = *c.Description
	}
	return l
}
