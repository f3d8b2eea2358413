package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEACHER DIRECTORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TeacherRepository implements schedule.TeacherDirectory for PostgreSQL.
type TeacherRepository struct {
	conn *Connection
}

// NewTeacherRepository creates a new TeacherRepository.
func NewTeacherRepository(conn *Connection) *TeacherRepository {
	return &TeacherRepository{conn: conn}
}

// FindOrCreateTeacher upserts the teacher by external id and links the group to it.
// The placeholder teacher is never stored.
func (r *TeacherRepository) FindOrCreateTeacher(ctx context.Context, externalID, displayName, group string) (schedule.Teacher, error) {
	if externalID == "" || externalID == schedule.PlaceholderTeacherID {
		return schedule.PlaceholderTeacher(), nil
	}

	parsed := schedule.TeacherFromDisplayName(externalID, displayName)
	var teacher schedule.Teacher

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO teachers (id, external_id, first_name, last_name, patronymic)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (external_id) DO UPDATE SET
				first_name = CASE WHEN EXCLUDED.last_name = '' THEN teachers.first_name ELSE EXCLUDED.first_name END,
				last_name = CASE WHEN EXCLUDED.last_name = '' THEN teachers.last_name ELSE EXCLUDED.last_name END,
				patronymic = CASE WHEN EXCLUDED.last_name = '' THEN teachers.patronymic ELSE EXCLUDED.patronymic END,
				updated_at = NOW()
			RETURNING id, external_id, first_name, last_name, patronymic
		`, uuid.New(), parsed.ExternalID, parsed.FirstName, parsed.LastName, parsed.Patronymic)

		var id uuid.UUID
		if err := row.Scan(&id, &teacher.ExternalID, &teacher.FirstName, &teacher.LastName, &teacher.Patronymic); err != nil {
			return fmt.Errorf("failed to upsert teacher: %w", err)
		}

		if strings.TrimSpace(group) == "" {
			return nil
		}
		if err := ensureGroup(ctx, tx, group); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO teacher_groups (teacher_id, group_name)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, group); err != nil {
			return fmt.Errorf("failed to link teacher to group: %w", err)
		}
		return nil
	})
	if err != nil {
		return schedule.Teacher{}, err
	}

	return teacher, nil
}

// TeacherGroups returns the groups linked to the teacher, sorted by name.
func (r *TeacherRepository) TeacherGroups(ctx context.Context, externalID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT tg.group_name
		FROM teacher_groups tg
		JOIN teachers t ON t.id = tg.teacher_id
		WHERE t.external_id = $1
		ORDER BY tg.group_name
	`, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teacher groups: %w", err)
	}

	groups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan teacher groups: %w", err)
	}
	return groups, nil
}

// ensureGroup registers a group name so foreign keys can reference it.
func ensureGroup(ctx context.Context, q Querier, group string) error {
	if _, err := q.Exec(ctx, `
		INSERT INTO groups (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, group); err != nil {
		return fmt.Errorf("failed to register group %s: %w", group, err)
	}
	return nil
}
