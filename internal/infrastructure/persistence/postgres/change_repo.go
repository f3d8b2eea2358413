package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE LOG IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChangeRepository implements schedule.ChangeLogStore for PostgreSQL.
type ChangeRepository struct {
	conn *Connection
}

// NewChangeRepository creates a new ChangeRepository.
func NewChangeRepository(conn *Connection) *ChangeRepository {
	return &ChangeRepository{conn: conn}
}

const changeSelectColumns = `
	id, group_name, old_control_sum, old_lesson_date, old_start_time, old_end_time,
	subject, lesson_type, teacher_name, classroom,
	new_lesson_date, new_start_time, new_end_time, description,
	deleted, updated_at
`

// FindChanges returns changes whose old or new date equals date, oldest update first.
func (r *ChangeRepository) FindChanges(ctx context.Context, group string, date time.Time) ([]schedule.Change, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+changeSelectColumns+`
		FROM schedule_changes
		WHERE group_name = $1 AND (old_lesson_date = $2 OR new_lesson_date = $2)
		ORDER BY updated_at, id
	`, group, dateToPG(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	return collectChanges(rows)
}

// FindAllChanges returns every change of the group.
func (r *ChangeRepository) FindAllChanges(ctx context.Context, group string) ([]schedule.Change, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+changeSelectColumns+`
		FROM schedule_changes
		WHERE group_name = $1
		ORDER BY updated_at, id
	`, group)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	return collectChanges(rows)
}

// FindByControlSum returns the change targeting a lesson, or schedule.ErrChangeNotFound.
func (r *ChangeRepository) FindByControlSum(ctx context.Context, group, controlSum string) (*schedule.Change, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+changeSelectColumns+`
		FROM schedule_changes
		WHERE group_name = $1 AND old_control_sum = $2
	`, group, controlSum)
	if err != nil {
		return nil, fmt.Errorf("failed to query change: %w", err)
	}

	changes, err := collectChanges(rows)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, shared.WrapError("postgres", "FindByControlSum", schedule.ErrChangeNotFound,
			group+" "+controlSum, shared.ErrNotFound)
	}
	return &changes[0], nil
}

// Save upserts the change. A lesson has at most one change, keyed by
// (group, old control sum); a new record gets a fresh UUID.
func (r *ChangeRepository) Save(ctx context.Context, c *schedule.Change) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	var lessonType *string
	if c.Type != nil {
		s := string(*c.Type)
		lessonType = &s
	}

	var id uuid.UUID
	err := r.conn.QueryRow(ctx, `
		INSERT INTO schedule_changes (
			id, group_name, old_control_sum, old_lesson_date, old_start_time, old_end_time,
			subject, lesson_type, teacher_name, classroom,
			new_lesson_date, new_start_time, new_end_time, description,
			deleted, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (group_name, old_control_sum) DO UPDATE SET
			old_lesson_date = EXCLUDED.old_lesson_date,
			old_start_time = EXCLUDED.old_start_time,
			old_end_time = EXCLUDED.old_end_time,
			subject = EXCLUDED.subject,
			lesson_type = EXCLUDED.lesson_type,
			teacher_name = EXCLUDED.teacher_name,
			classroom = EXCLUDED.classroom,
			new_lesson_date = EXCLUDED.new_lesson_date,
			new_start_time = EXCLUDED.new_start_time,
			new_end_time = EXCLUDED.new_end_time,
			description = EXCLUDED.description,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		c.ID, c.Group, c.OldControlSum, dateToPG(c.OldDate), clockToPG(c.OldStart), clockToPG(c.OldEnd),
		c.Subject, lessonType, c.TeacherName, c.Classroom,
		optionalDateToPG(c.NewDate), optionalClockToPG(c.NewStart), optionalClockToPG(c.NewEnd), c.Description,
		c.Deleted, c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save change: %w", err)
	}

	c.ID = id.String()
	return nil
}

func collectChanges(rows pgx.Rows) ([]schedule.Change, error) {
	changes, err := pgx.CollectRows(rows, scanChange)
	if err != nil {
		return nil, fmt.Errorf("failed to scan changes: %w", err)
	}
	return changes, nil
}

func scanChange(row pgx.CollectableRow) (schedule.Change, error) {
	var (
		c                schedule.Change
		id               uuid.UUID
		oldDate, newDate pgtype.Date
		oldStart, oldEnd pgtype.Time
		newStart, newEnd pgtype.Time
		lessonType       *string
	)

	err := row.Scan(
		&id, &c.Group, &c.OldControlSum, &oldDate, &oldStart, &oldEnd,
		&c.Subject, &lessonType, &c.TeacherName, &c.Classroom,
		&newDate, &newStart, &newEnd, &c.Description,
		&c.Deleted, &c.UpdatedAt,
	)
	if err != nil {
		return schedule.Change{}, err
	}

	c.ID = id.String()
	c.OldDate = dateFromPG(oldDate)
	c.OldStart = clockFromPG(oldStart)
	c.OldEnd = clockFromPG(oldEnd)
	c.NewDate = optionalDateFromPG(newDate)
	c.NewStart = optionalClockFromPG(newStart)
	c.NewEnd = optionalClockFromPG(newEnd)
	if lessonType != nil {
		t := schedule.LessonType(*lessonType)
		c.Type = &t
	}
	return c, nil
}
