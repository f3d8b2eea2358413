package schedule

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR INTERFACES
// Реализации находятся в infrastructure/external и infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// FeedFetcher загружает сырой JSON фида расписания.
type FeedFetcher interface {
	// FetchGroup возвращает фид группы.
	// Возвращает ErrFeedUnavailable при сетевой ошибке или пустом теле.
	FetchGroup(ctx context.Context, group string) ([]byte, error)

	// FetchTeacher возвращает фид преподавателя по внешнему идентификатору.
	FetchTeacher(ctx context.Context, externalID string) ([]byte, error)
}

// TeacherDirectory - справочник преподавателей.
type TeacherDirectory interface {
	// FindOrCreateTeacher находит преподавателя по внешнему идентификатору
	// или создаёт его, и привязывает к нему группу.
	FindOrCreateTeacher(ctx context.Context, externalID, displayName, group string) (Teacher, error)

	// TeacherGroups возвращает группы, к которым привязан преподаватель.
	TeacherGroups(ctx context.Context, externalID string) ([]string, error)
}

// ChangeLogStore - хранилище журнала изменений.
type ChangeLogStore interface {
	// FindChanges возвращает изменения группы, у которых старая или новая
	// дата совпадает с date, в порядке обновления.
	FindChanges(ctx context.Context, group string, date time.Time) ([]Change, error)

	// FindAllChanges возвращает все изменения группы.
	FindAllChanges(ctx context.Context, group string) ([]Change, error)

	// FindByControlSum возвращает изменение для занятия группы.
	// Возвращает ErrChangeNotFound, если его нет.
	FindByControlSum(ctx context.Context, group, controlSum string) (*Change, error)

	// Save создаёт или обновляет изменение по ID.
	Save(ctx context.Context, change *Change) error
}

// LessonRepository хранит снимок базового расписания, полученного из фида.
type LessonRepository interface {
	// ReplaceGroupLessons атомарно заменяет все занятия группы.
	ReplaceGroupLessons(ctx context.Context, group string, lessons []Lesson) error

	// FindByGroupAndDate возвращает занятия группы на дату.
	FindByGroupAndDate(ctx context.Context, group string, date time.Time) ([]Lesson, error)

	// FindLesson возвращает занятие по группе, дате и началу.
	// Возвращает ErrLessonNotFound, если его нет.
	FindLesson(ctx context.Context, group string, date time.Time, start Clock) (*Lesson, error)

	// TrackedGroups возвращает группы, расписание которых обновляется по расписанию.
	TrackedGroups(ctx context.Context) ([]string, error)
}
