package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

func TestGetTeacherSemesterHandler_MergesAcrossGroupsAndDays(t *testing.T) {
	tuesday := schedule.NewDate(2025, 3, 4)
	thursday := schedule.NewDate(2025, 3, 20)
	nine, half10 := schedule.NewClock(9, 0), schedule.NewClock(10, 30)

	repo := newFakeLessons()
	repo.add(
		lesson("G2", thursday, nine, half10, "Physics", ivanov),
		lesson("G1", thursday, nine, half10, "Physics", ivanov),
		lesson("G2", tuesday, schedule.NewClock(13, 0), schedule.NewClock(14, 30), "Optics", ivanov),
		lesson("G1", tuesday, nine, half10, "Chemistry", petrov),
	)
	repo.tracked = []string{"G1", "G2"}

	feed := &fakeTeacherFeed{groups: map[string][]string{"t-ivanov": {"G1", "G2"}}}
	days := NewGetDayScheduleHandler(repo, &fakeChanges{}, nil, testSemester, nil)
	teacher := NewGetTeacherScheduleHandler(feed, &fakeDirectory{}, repo, days, nil, 2, nil)
	h := NewGetTeacherSemesterHandler(teacher, NewGetSemesterScheduleHandler(days, testSemester))

	res, err := h.Handle(context.Background(), GetTeacherSemesterQuery{TeacherID: "t-ivanov"})

	require.NoError(t, err)
	require.Len(t, res.Lessons, 2)

	assert.Equal(t, "Optics", res.Lessons[0].Subject)
	assert.True(t, schedule.SameDate(tuesday, res.Lessons[0].Date))

	joint := res.Lessons[1]
	assert.Equal(t, "Physics", joint.Subject)
	assert.True(t, schedule.SameDate(thursday, joint.Date))
	assert.Equal(t, []string{"G1", "G2"}, joint.Groups)
}

func TestGetTeacherSemesterHandler_Validation(t *testing.T) {
	days := NewGetDayScheduleHandler(newFakeLessons(), &fakeChanges{}, nil, testSemester, nil)
	teacher := NewGetTeacherScheduleHandler(&fakeTeacherFeed{}, &fakeDirectory{}, newFakeLessons(), days, nil, 1, nil)
	h := NewGetTeacherSemesterHandler(teacher, NewGetSemesterScheduleHandler(days, testSemester))

	_, err := h.Handle(context.Background(), GetTeacherSemesterQuery{TeacherID: " "})
	assert.Error(t, err)
}
