package schedule

import (
	"slices"
	"strings"
)

// MaxDoublePeriodGap - максимальный перерыв между половинами пары.
const MaxDoublePeriodGap Clock = 15

// MergeDoublePeriods склеивает соседние слоты одного занятия в сдвоенную пару.
//
// Занятия сортируются по (дата, начало). Соседние записи склеиваются, если
// совпадают предмет, преподаватель, тип и аудитория, а перерыв не больше
// MaxDoublePeriodGap. Перекрывающиеся слоты тоже склеиваются. У результата
// остаётся контрольная сумма первого слота, конец берётся наибольший из двух.
// Входной срез не изменяется.
func MergeDoublePeriods(lessons []Lesson) []Lesson {
	if len(lessons) == 0 {
		return []Lesson{}
	}

	sorted := make([]Lesson, len(lessons))
	for i, l := range lessons {
		sorted[i] = l.Clone()
	}
	slices.SortStableFunc(sorted, compareLessons)

	merged := make([]Lesson, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if canMerge(current, next) {
			current.End = max(current.End, next.End)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	return merged
}

func canMerge(a, b Lesson) bool {
	if !SameDate(a.Date, b.Date) {
		return false
	}
	if a.Subject != b.Subject || a.Type != b.Type {
		return false
	}
	if !strings.EqualFold(a.Teacher.ExternalID, b.Teacher.ExternalID) {
		return false
	}
	if !strings.EqualFold(a.Classroom, b.Classroom) {
		return false
	}

	return b.Start-a.End <= MaxDoublePeriodGap
}
