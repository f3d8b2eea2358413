package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock - время суток в минутах от полуночи.
type Clock int

// NewClock создаёт Clock из часов и минут.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock разбирает время в форматах "H:mm", "HH:mm" и "H:mm:ss".
// Секунды отбрасываются.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in clock %q", s)
		}
	}

	return NewClock(hour, minute), nil
}

// Hour возвращает часы.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute возвращает минуты.
func (c Clock) Minute() int { return int(c) % 60 }

// String возвращает время в формате "HH:mm".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On возвращает момент времени на указанную дату в заданной локации.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Даты занятий хранятся как полночь UTC, без учёта часового пояса.

// NewDate создаёт календарную дату.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf отбрасывает время и часовой пояс у t, оставляя календарную дату.
func DateOf(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// SameDate сравнивает только календарные даты.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateKey возвращает дату в ISO формате.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON TYPE
// ══════════════════════════════════════════════════════════════════════════════

// LessonType - тип занятия.
type LessonType string

const (
	LessonLecture   LessonType = "LECTURE"
	LessonPractical LessonType = "PRACTICAL"
	LessonLab       LessonType = "LAB"
	LessonExam      LessonType = "EXAM"
)

// lessonTypeCodes сопоставляет коды фида с типами занятий.
var lessonTypeCodes = map[string]LessonType{
	"ЛК":      LessonLecture,
	"ПЗ":      LessonPractical,
	"ЛР":      LessonLab,
	"Экзамен": LessonExam,
}

// ParseLessonType возвращает тип по коду фида.
// Неизвестный код даёт LECTURE и known=false.
func ParseLessonType(code string) (t LessonType, known bool) {
	if t, ok := lessonTypeCodes[strings.TrimSpace(code)]; ok {
		return t, true
	}
	return LessonLecture, false
}

// IsValid проверяет, что тип входит в перечисление.
func (t LessonType) IsValid() bool {
	switch t {
	case LessonLecture, LessonPractical, LessonLab, LessonExam:
		return true
	}
	return false
}

// Code возвращает короткий код фида для типа.
func (t LessonType) Code() string {
	for code, lt := range lessonTypeCodes {
		if lt == t {
			return code
		}
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// TEACHER
// ══════════════════════════════════════════════════════════════════════════════

const (
	// PlaceholderTeacherID - внешний идентификатор "преподаватель не назначен".
	PlaceholderTeacherID = "00000000-0000-0000-0000-000000000000"

	placeholderFirstName = "Не указан"
)

// Teacher - снимок преподавателя на момент разбора. Копируется по значению.
type Teacher struct {
	ExternalID string `json:"external_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Patronymic string `json:"patronymic"`
}

// PlaceholderTeacher возвращает единственного глобального преподавателя-заглушку.
func PlaceholderTeacher() Teacher {
	return Teacher{
		ExternalID: PlaceholderTeacherID,
		FirstName:  placeholderFirstName,
		LastName:   " ",
		Patronymic: " ",
	}
}

// IsPlaceholder возвращает true для заглушки.
func (t Teacher) IsPlaceholder() bool {
	return t.ExternalID == PlaceholderTeacherID
}

// TeacherFromDisplayName разбирает "Фамилия Имя Отчество".
// Недостающие части остаются пустыми, лишние добавляются к отчеству.
func TeacherFromDisplayName(externalID, displayName string) Teacher {
	t := Teacher{ExternalID: externalID}
	parts := strings.Fields(displayName)
	if len(parts) > 0 {
		t.LastName = parts[0]
	}
	if len(parts) > 1 {
		t.FirstName = parts[1]
	}
	if len(parts) > 2 {
		t.Patronymic = strings.Join(parts[2:], " ")
	}
	return t
}

// DisplayName возвращает "Фамилия Имя Отчество" без лишних пробелов.
func (t Teacher) DisplayName() string {
	return strings.Join(strings.Fields(t.LastName+" "+t.FirstName+" "+t.Patronymic), " ")
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - одно занятие в расписании группы.
type Lesson struct {
	Group       string     `json:"group"`
	Groups      []string   `json:"groups,omitempty"`
	Subject     string     `json:"subject"`
	Type        LessonType `json:"type"`
	Teacher     Teacher    `json:"teacher"`
	Classroom   string     `json:"classroom"`
	Date        time.Time  `json:"date"`
	Start       Clock      `json:"start"`
	End         Clock      `json:"end"`
	Week        int        `json:"week"`
	ControlSum  string     `json:"control_sum"`
	Description string     `json:"description,omitempty"`
}

// Clone возвращает копию занятия, не разделяющую срез Groups.
func (l Lesson) Clone() Lesson {
	if l.Groups != nil {
		l.Groups = append([]string(nil), l.Groups...)
	}
	return l
}

// Duration возвращает длительность занятия.
func (l Lesson) Duration() time.Duration {
	return time.Duration(l.End-l.Start) * time.Minute
}

// compareLessons упорядочивает занятия по (дата, начало).
func compareLessons(a, b Lesson) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return int(a.Start) - int(b.Start)
}
