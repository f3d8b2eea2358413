package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const controlSumDelimiter = "|"

// ComputeControlSum вычисляет контрольную сумму занятия.
//
// Сумма зависит только от даты, начала, конца, группы, предмета, ФИО
// преподавателя, аудитории и типа. Поля Week, Description, Groups и
// сама ControlSum на результат не влияют.
func ComputeControlSum(l Lesson) string {
	canonical := strings.Join([]string{
		DateKey(l.Date),
		l.Start.String(),
		l.End.String(),
		l.Group,
		l.Subject,
		l.Teacher.FirstName,
		l.Teacher.LastName,
		l.Teacher.Patronymic,
		l.Classroom,
		string(l.Type),
	}, controlSumDelimiter)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// WithControlSum возвращает копию занятия с пересчитанной суммой.
func (l Lesson) WithControlSum() Lesson {
	l.ControlSum = ComputeControlSum(l)
	return l
}
