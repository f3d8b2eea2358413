package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ListChangesQuery запрашивает журнал изменений группы.
type ListChangesQuery struct {
	Group string
	// IncludeDeleted включает записи об удалённых занятиях.
	IncludeDeleted bool
}

// ListChangesHandler отдаёт журнал изменений группы в порядке обновления.
type ListChangesHandler struct {
	changes schedule.ChangeLogStore
}

// NewListChangesHandler создаёт обработчик.
func NewListChangesHandler(changes schedule.ChangeLogStore) *ListChangesHandler {
	return &ListChangesHandler{changes: changes}
}

// Handle возвращает изменения группы.
func (h *ListChangesHandler) Handle(ctx context.Context, q ListChangesQuery) ([]schedule.Change, error) {
	if strings.TrimSpace(q.Group) == "" {
		return nil, errors.New("group is required")
	}

	changes, err := h.changes.FindAllChanges(ctx, q.Group)
	if err != nil {
		return nil, fmt.Errorf("list_changes: %w", err)
	}
	if !q.IncludeDeleted {
		changes = slices.DeleteFunc(slices.Clone(changes), func(c schedule.Change) bool { return c.Deleted })
	}
	if changes == nil {
		changes = []schedule.Change{}
	}
	return changes, nil
}
