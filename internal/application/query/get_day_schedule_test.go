package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

func TestGetDayScheduleHandler_InPlaceEdit(t *testing.T) {
	day := schedule.NewDate(2025, 3, 20)
	physics := lesson("G1", day, schedule.NewClock(9, 0), schedule.NewClock(10, 30), "Physics", ivanov)

	repo := newFakeLessons()
	repo.add(physics)
	changes := &fakeChanges{byGroup: map[string][]schedule.Change{
		"G1": {{
			Group:         "G1",
			OldControlSum: physics.ControlSum,
			OldDate:       day,
			OldStart:      physics.Start,
			OldEnd:        physics.End,
			NewStart:      ptr(schedule.NewClock(10, 0)),
			NewEnd:        ptr(schedule.NewClock(11, 30)),
			Description:   ptr("Room change"),
		}},
	}}

	h := NewGetDayScheduleHandler(repo, changes, nil, testSemester, nil)
	res, err := h.Handle(context.Background(), GetDayScheduleQuery{Group: "G1", Date: day})

	require.NoError(t, err)
	assert.Equal(t, "20.03.2025", res.Date)
	assert.Equal(t, "Четверг", res.Weekday)
	assert.Equal(t, 3, res.Week)
	require.Len(t, res.Lessons, 1)

	got := res.Lessons[0]
	assert.Equal(t, schedule.NewClock(10, 0), got.Start)
	assert.Equal(t, schedule.NewClock(11, 30), got.End)
	assert.Equal(t, "Room change", got.Description)
	assert.Equal(t, "Physics", got.Subject)
	assert.Equal(t, physics.ControlSum, got.ControlSum)
}

func TestGetDayScheduleHandler_MoveAcrossDays(t *testing.T) {
	from := schedule.NewDate(2025, 3, 20)
	to := schedule.NewDate(2025, 3, 22)
	physics := lesson("G1", from, schedule.NewClock(9, 0), schedule.NewClock(10, 30), "Physics", ivanov)
	chemistry := lesson("G1", from, schedule.NewClock(10, 45), schedule.NewClock(12, 15), "Chemistry", petrov)

	repo := newFakeLessons()
	repo.add(physics, chemistry)
	changes := &fakeChanges{byGroup: map[string][]schedule.Change{
		"G1": {{
			Group:         "G1",
			OldControlSum: physics.ControlSum,
			OldDate:       from,
			OldStart:      physics.Start,
			OldEnd:        physics.End,
			NewDate:       &to,
			NewStart:      ptr(schedule.NewClock(12, 0)),
			NewEnd:        ptr(schedule.NewClock(13, 30)),
		}},
	}}

	h := NewGetDayScheduleHandler(repo, changes, nil, testSemester, nil)
	ctx := context.Background()

	origin, err := h.Lessons(ctx, "G1", from)
	require.NoError(t, err)
	require.Len(t, origin, 1)
	assert.Equal(t, "Chemistry", origin[0].Subject)

	target, err := h.Lessons(ctx, "G1", to)
	require.NoError(t, err)
	require.Len(t, target, 1)

	moved := target[0]
	assert.Equal(t, "Physics", moved.Subject)
	assert.Equal(t, schedule.LessonPractical, moved.Type)
	assert.Equal(t, ivanov, moved.Teacher)
	assert.Equal(t, to, moved.Date)
	assert.Equal(t, schedule.NewClock(12, 0), moved.Start)
	assert.Equal(t, physics.ControlSum, moved.ControlSum)
	assert.Equal(t, 3, moved.Week)
}

func TestGetDayScheduleHandler_UsesCache(t *testing.T) {
	day := schedule.NewDate(2025, 3, 20)
	repo := newFakeLessons()
	repo.add(lesson("G1", day, schedule.NewClock(9, 0), schedule.NewClock(10, 30), "Physics", ivanov))
	cache := newMemoryCache()

	h := NewGetDayScheduleHandler(repo, &fakeChanges{}, cache, testSemester, nil)
	ctx := context.Background()

	first, err := h.Lessons(ctx, "G1", day)
	require.NoError(t, err)

	// Baseline changes are not visible until the cached day is invalidated.
	repo.byGroup["G1"] = nil

	second, err := h.Lessons(ctx, "G1", day)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.hits)
}

func TestGetDayScheduleHandler_RefreshDuringReadIsNotCached(t *testing.T) {
	day := schedule.NewDate(2025, 3, 20)
	old := lesson("G1", day, schedule.NewClock(9, 0), schedule.NewClock(10, 30), "Physics", ivanov)
	fresh := lesson("G1", day, schedule.NewClock(9, 0), schedule.NewClock(10, 30), "Optics", ivanov)

	repo := newFakeLessons()
	repo.add(old)
	cache := newMemoryCache()

	// A refresh lands after the baseline was read but before the day is cached.
	repo.afterRead = func(group string) {
		repo.mu.Lock()
		repo.byGroup[group] = []schedule.Lesson{fresh}
		repo.afterRead = nil
		repo.mu.Unlock()
		cache.invalidateGroup(group)
	}

	h := NewGetDayScheduleHandler(repo, &fakeChanges{}, cache, testSemester, nil)
	ctx := context.Background()

	first, err := h.Lessons(ctx, "G1", day)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Physics", first[0].Subject)
	assert.Equal(t, 1, cache.stale)

	second, err := h.Lessons(ctx, "G1", day)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "Optics", second[0].Subject)
	assert.Zero(t, cache.hits)
}

func TestGetDayScheduleHandler_EmptyDay(t *testing.T) {
	h := NewGetDayScheduleHandler(newFakeLessons(), &fakeChanges{}, nil, testSemester, nil)

	res, err := h.Handle(context.Background(), GetDayScheduleQuery{Group: "G1", Date: schedule.NewDate(2025, 3, 21)})

	require.NoError(t, err)
	assert.Empty(t, res.Lessons)
}

func TestGetDayScheduleQuery_Validate(t *testing.T) {
	assert.Error(t, GetDayScheduleQuery{}.Validate())
	assert.Error(t, GetDayScheduleQuery{Group: "G1"}.Validate())
	assert.NoError(t, GetDayScheduleQuery{Group: "G1", Date: schedule.NewDate(2025, 3, 21)}.Validate())
}
