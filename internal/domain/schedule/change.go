package schedule

import (
	"strings"
	"time"
)

// Change - запись журнала изменений расписания.
//
// Ссылается на занятие базового расписания по OldControlSum. Поля Old* хранят
// исходное положение занятия. Указатели - необязательные переопределения.
// Движок сверки только читает Change и никогда его не изменяет.
type Change struct {
	ID    string `json:"id"`
	Group string `json:"group"`

	OldControlSum string    `json:"old_control_sum"`
	OldDate       time.Time `json:"old_date"`
	OldStart      Clock     `json:"old_start"`
	OldEnd        Clock     `json:"old_end"`

	Subject     *string     `json:"subject,omitempty"`
	Type        *LessonType `json:"type,omitempty"`
	TeacherName *string     `json:"teacher_name,omitempty"`
	Classroom   *string     `json:"classroom,omitempty"`
	NewDate     *time.Time  `json:"new_date,omitempty"`
	NewStart    *Clock      `json:"new_start,omitempty"`
	NewEnd      *Clock      `json:"new_end,omitempty"`
	Description *string     `json:"description,omitempty"`

	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsMove возвращает true, если изменение переносит занятие на другую дату.
func (c Change) IsMove() bool {
	return c.NewDate != nil
}

// EffectiveStart возвращает новое начало или исходное.
func (c Change) EffectiveStart() Clock {
	if c.NewStart != nil {
		return *c.NewStart
	}
	return c.OldStart
}

// EffectiveEnd возвращает новый конец или исходный.
func (c Change) EffectiveEnd() Clock {
	if c.NewEnd != nil {
		return *c.NewEnd
	}
	return c.OldEnd
}

// Validate проверяет изменение перед записью в журнал.
// Функции сверки не валидируют входные данные, поэтому это единственная граница.
func (c Change) Validate() error {
	if strings.TrimSpace(c.Group) == "" {
		return InvalidChange("group is required")
	}
	if strings.TrimSpace(c.OldControlSum) == "" {
		return InvalidChange("old control sum is required")
	}
	if c.OldDate.IsZero() {
		return InvalidChange("old lesson date is required")
	}
	if c.OldEnd <= c.OldStart {
		return InvalidChange("old lesson end must be after its start")
	}
	if c.Type != nil && !c.Type.IsValid() {
		return InvalidChange("unknown lesson type " + string(*c.Type))
	}
	if c.NewDate != nil && c.NewDate.IsZero() {
		return InvalidChange("new lesson date must not be zero")
	}
	if c.EffectiveEnd() <= c.EffectiveStart() {
		return InvalidChange("lesson end must be after its start")
	}
	return nil
}

// teacherOverride возвращает преподавателя с переопределённым ФИО.
// Внешний идентификатор сохраняется от базового занятия.
func (c Change) teacherOverride(base Teacher) Teacher {
	if c.TeacherName == nil {
		return base
	}
	return TeacherFromDisplayName(base.ExternalID, *c.TeacherName)
}
