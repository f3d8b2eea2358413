// Package schedule содержит доменную модель расписания занятий.
//
// Пакет определяет:
//
//   - Value Objects: Lesson, Teacher, Clock, LessonType, Semester
//   - Change - запись журнала изменений (перенос, отмена, правка занятия)
//   - Чистые функции сверки: MergeDoublePeriods, MergeChanges, MergeMultiGroups
//   - Интерфейсы коллабораторов: FeedFetcher, TeacherDirectory, ChangeLogStore, LessonRepository
//
// # Идентичность занятия
//
// У внешнего фида нет стабильных ключей, поэтому занятие идентифицируется
// контрольной суммой (ComputeControlSum) от его содержимого. Повторный разбор
// того же фида даёт те же суммы, и журнал изменений ссылается на занятие по ней.
//
// # Сверка
//
//	baseline := repo.FindByGroupAndDate(ctx, group, date)
//	changes := store.FindChanges(ctx, group, date)
//	final := schedule.MergeChanges(baseline, changes, date)
//
// Функции сверки не делают ввода-вывода, не кешируют и не мутируют входные данные.
package schedule
