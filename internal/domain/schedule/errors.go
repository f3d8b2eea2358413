package schedule

import (
	"errors"

	"github.com/schedule-hub/schedule-hub/internal/domain/shared"
)

// Закрытый набор ошибок расписания.
var (
	// ErrFeedUnavailable - фид пуст или недоступен. Политику повторов выбирает вызывающий.
	ErrFeedUnavailable = errors.New("schedule feed unavailable")

	// ErrMalformedFeed - неожиданная структура JSON на верхнем уровне.
	ErrMalformedFeed = errors.New("malformed schedule feed")

	// ErrMalformedLesson - битая запись одного занятия; занятие пропускается.
	ErrMalformedLesson = errors.New("malformed lesson entry")

	// ErrInvalidChange - запись журнала изменений не прошла проверку.
	ErrInvalidChange = errors.New("invalid schedule change")

	// ErrLessonNotFound - занятие не найдено в базовом расписании.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrChangeNotFound - запись журнала изменений не найдена.
	ErrChangeNotFound = errors.New("schedule change not found")
)

// FeedUnavailable оборачивает причину недоступности фида.
func FeedUnavailable(op, key string, err error) error {
	return shared.WrapError("feed", op, ErrFeedUnavailable, "feed unavailable for "+key,
		errors.Join(shared.ErrServiceUnavailable, err))
}

// MalformedFeed оборачивает ошибку разбора фида.
func MalformedFeed(op, key string, err error) error {
	return shared.WrapError("feed", op, ErrMalformedFeed, "malformed feed for "+key,
		errors.Join(shared.ErrInvalidFormat, err))
}

// MalformedLesson описывает пропущенную запись занятия.
func MalformedLesson(detail string, err error) error {
	return shared.WrapError("feed", "ParseLesson", ErrMalformedLesson, detail, err)
}

// InvalidChange описывает ошибку валидации изменения.
func InvalidChange(detail string) error {
	return shared.WrapError("change", "Validate", ErrInvalidChange, detail, shared.ErrValidation)
}

// LessonNotFound сообщает об отсутствии занятия.
func LessonNotFound(op, detail string) error {
	return shared.WrapError("schedule", op, ErrLessonNotFound, detail, shared.ErrNotFound)
}
