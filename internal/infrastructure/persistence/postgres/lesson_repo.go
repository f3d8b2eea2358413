package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements schedule.LessonRepository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

var lessonCopyColumns = []string{
	"group_name", "groups_list", "subject", "lesson_type",
	"teacher_external_id", "teacher_first_name", "teacher_last_name", "teacher_patronymic",
	"classroom", "lesson_date", "start_time", "end_time", "lesson_week", "control_sum",
}

const lessonSelectColumns = `
	group_name, groups_list, subject, lesson_type,
	teacher_external_id, teacher_first_name, teacher_last_name, teacher_patronymic,
	classroom, lesson_date, start_time, end_time, lesson_week, control_sum
`

// ReplaceGroupLessons deletes the group's snapshot and bulk-inserts the new one
// in a single transaction.
func (r *LessonRepository) ReplaceGroupLessons(ctx context.Context, group string, lessons []schedule.Lesson) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := ensureGroup(ctx, tx, group); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM lessons WHERE group_name = $1`, group); err != nil {
			return fmt.Errorf("failed to delete lessons of %s: %w", group, err)
		}

		rows := make([][]any, 0, len(lessons))
		for _, l := range lessons {
			groups := l.Groups
			if groups == nil {
				groups = []string{}
			}
			rows = append(rows, []any{
				group, groups, l.Subject, string(l.Type),
				l.Teacher.ExternalID, l.Teacher.FirstName, l.Teacher.LastName, l.Teacher.Patronymic,
				l.Classroom, dateToPG(l.Date), clockToPG(l.Start), clockToPG(l.End), l.Week, l.ControlSum,
			})
		}

		if len(rows) > 0 {
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{"lessons"}, lessonCopyColumns, pgx.CopyFromRows(rows)); err != nil {
				return fmt.Errorf("failed to copy lessons of %s: %w", group, err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE groups SET refreshed_at = NOW() WHERE name = $1`, group); err != nil {
			return fmt.Errorf("failed to mark %s refreshed: %w", group, err)
		}
		return nil
	})
}

// FindByGroupAndDate returns the group's baseline lessons on date ordered by start.
func (r *LessonRepository) FindByGroupAndDate(ctx context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+lessonSelectColumns+`
		FROM lessons
		WHERE group_name = $1 AND lesson_date = $2
		ORDER BY start_time, id
	`, group, dateToPG(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	return collectLessons(rows)
}

// FindLesson returns the lesson at the given slot or schedule.ErrLessonNotFound.
func (r *LessonRepository) FindLesson(ctx context.Context, group string, date time.Time, start schedule.Clock) (*schedule.Lesson, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+lessonSelectColumns+`
		FROM lessons
		WHERE group_name = $1 AND lesson_date = $2 AND start_time = $3
		ORDER BY id
		LIMIT 1
	`, group, dateToPG(date), clockToPG(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson: %w", err)
	}

	lessons, err := collectLessons(rows)
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return nil, schedule.LessonNotFound("postgres.FindLesson",
			fmt.Sprintf("%s %s %s", group, schedule.DateKey(date), start))
	}
	return &lessons[0], nil
}

// TrackedGroups returns the names of groups refreshed by the scheduler.
func (r *LessonRepository) TrackedGroups(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT name FROM groups WHERE tracked ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked groups: %w", err)
	}

	groups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked groups: %w", err)
	}
	return groups, nil
}

func collectLessons(rows pgx.Rows) ([]schedule.Lesson, error) {
	lessons, err := pgx.CollectRows(rows, scanLesson)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lessons: %w", err)
	}
	return lessons, nil
}

func scanLesson(row pgx.CollectableRow) (schedule.Lesson, error) {
	var (
		l          schedule.Lesson
		lessonType string
		date       pgtype.Date
		start, end pgtype.Time
	)

	err := row.Scan(
		&l.Group, &l.Groups, &l.Subject, &lessonType,
		&l.Teacher.ExternalID, &l.Teacher.FirstName, &l.Teacher.LastName, &l.Teacher.Patronymic,
		&l.Classroom, &date, &start, &end, &l.Week, &l.ControlSum,
	)
	if err != nil {
		return schedule.Lesson{}, err
	}

	l.Type = schedule.LessonType(lessonType)
	l.Date = dateFromPG(date)
	l.Start = clockFromPG(start)
	l.End = clockFromPG(end)
	if len(l.Groups) == 0 {
		l.Groups = nil
	}
	return l, nil
}
