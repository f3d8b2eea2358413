package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

type fakeParser struct {
	lessons map[string][]schedule.Lesson
	err     error
}

func (p *fakeParser) ParseGroupSchedule(_ context.Context, group string) ([]schedule.Lesson, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.lessons[group], nil
}

type fakeLessons struct {
	mu      sync.Mutex
	byGroup map[string][]schedule.Lesson
	err     error
}

func newFakeLessons() *fakeLessons {
	return &fakeLessons{byGroup: make(map[string][]schedule.Lesson)}
}

func (r *fakeLessons) ReplaceGroupLessons(_ context.Context, group string, lessons []schedule.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.byGroup[group] = lessons
	return nil
}

func (r *fakeLessons) FindByGroupAndDate(_ context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.Lesson
	for _, l := range r.byGroup[group] {
		if schedule.SameDate(l.Date, date) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLessons) FindLesson(_ context.Context, group string, date time.Time, start schedule.Clock) (*schedule.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.byGroup[group] {
		if schedule.SameDate(l.Date, date) && l.Start == start {
			return &l, nil
		}
	}
	return nil, schedule.LessonNotFound("fake.FindLesson", group)
}

func (r *fakeLessons) TrackedGroups(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups := make([]string, 0, len(r.byGroup))
	for g := range r.byGroup {
		groups = append(groups, g)
	}
	return groups, nil
}

type fakeChanges struct {
	saved []schedule.Change
	seq   int
}

func (s *fakeChanges) FindChanges(context.Context, string, time.Time) ([]schedule.Change, error) {
	return nil, errors.New("not used")
}

func (s *fakeChanges) FindAllChanges(context.Context, string) ([]schedule.Change, error) {
	return nil, errors.New("not used")
}

func (s *fakeChanges) FindByControlSum(_ context.Context, group, controlSum string) (*schedule.Change, error) {
	for i := range s.saved {
		if s.saved[i].Group == group && s.saved[i].OldControlSum == controlSum {
			c := s.saved[i]
			return &c, nil
		}
	}
	return nil, schedule.ErrChangeNotFound
}

func (s *fakeChanges) Save(_ context.Context, c *schedule.Change) error {
	if c.ID == "" {
		s.seq++
		c.ID = "change-" + string(rune('0'+s.seq))
	}
	for i := range s.saved {
		if s.saved[i].ID == c.ID {
			s.saved[i] = *c
			return nil
		}
	}
	s.saved = append(s.saved, *c)
	return nil
}

type fakeInvalidator struct {
	groups []string
	days   []string
}

func (f *fakeInvalidator) InvalidateGroup(_ context.Context, group string) error {
	f.groups = append(f.groups, group)
	return nil
}

func (f *fakeInvalidator) InvalidateDay(_ context.Context, group string, date time.Time) error {
	f.days = append(f.days, group+"@"+schedule.DateKey(date))
	return nil
}

func lessonAt(group string, date time.Time, start, end schedule.Clock, subject string) schedule.Lesson {
	return schedule.Lesson{
		Group:     group,
		Subject:   subject,
		Type:      schedule.LessonLecture,
		Teacher:   schedule.PlaceholderTeacher(),
		Classroom: "ГУК Б-416",
		Date:      date,
		Start:     start,
		End:       end,
		Week:      1,
	}.WithControlSum()
}

func ptr[T any](v T) *T { return &v }
