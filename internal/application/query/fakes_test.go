package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

type fakeLessons struct {
	mu      sync.Mutex
	byGroup map[string][]schedule.Lesson
	tracked []string

	// afterRead runs once a baseline read has returned.
	afterRead func(group string)
}

func newFakeLessons() *fakeLessons {
	return &fakeLessons{byGroup: make(map[string][]schedule.Lesson)}
}

func (r *fakeLessons) add(lessons ...schedule.Lesson) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range lessons {
		r.byGroup[l.Group] = append(r.byGroup[l.Group], l)
	}
}

func (r *fakeLessons) ReplaceGroupLessons(_ context.Context, group string, lessons []schedule.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byGroup[group] = lessons
	r.tracked = append(r.tracked, group)
	return nil
}

func (r *fakeLessons) FindByGroupAndDate(_ context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	r.mu.Lock()
	var out []schedule.Lesson
	for _, l := range r.byGroup[group] {
		if schedule.SameDate(l.Date, date) {
			out = append(out, l)
		}
	}
	hook := r.afterRead
	r.mu.Unlock()

	if hook != nil {
		hook(group)
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
	return append([]string(nil), r.tracked...), nil
}

type fakeChanges struct {
	byGroup map[string][]schedule.Change
}

func (s *fakeChanges) FindChanges(_ context.Context, group string, date time.Time) ([]schedule.Change, error) {
	var out []schedule.Change
	for _, c := range s.byGroup[group] {
		if schedule.SameDate(c.OldDate, date) || (c.NewDate != nil && schedule.SameDate(*c.NewDate, date)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeChanges) FindAllChanges(_ context.Context, group string) ([]schedule.Change, error) {
	return s.byGroup[group], nil
}

func (s *fakeChanges) FindByControlSum(context.Context, string, string) (*schedule.Change, error) {
	return nil, schedule.ErrChangeNotFound
}

func (s *fakeChanges) Save(context.Context, *schedule.Change) error {
	return errors.New("read only")
}

type memoryCache struct {
	mu          sync.Mutex
	days        map[string][]schedule.Lesson
	generations map[string]int64
	gets        int
	hits        int
	stale       int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{days: make(map[string][]schedule.Lesson), generations: make(map[string]int64)}
}

func (c *memoryCache) GetDay(_ context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	lessons, ok := c.days[group+"@"+schedule.DateKey(date)]
	if !ok {
		return nil, errors.New("miss")
	}
	c.hits++
	return lessons, nil
}

func (c *memoryCache) Generation(_ context.Context, group string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[group], nil
}

func (c *memoryCache) SetDay(_ context.Context, group string, date time.Time, generation int64, lessons []schedule.Lesson) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[group] != generation {
		c.stale++
		return nil
	}
	c.days[group+"@"+schedule.DateKey(date)] = lessons
	return nil
}

func (c *memoryCache) invalidateGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[group]++
	for key := range c.days {
		if strings.HasPrefix(key, group+"@") {
			delete(c.days, key)
		}
	}
}

type fakeTeacherFeed struct {
	groups map[string][]string
	err    error
}

func (f *fakeTeacherFeed) TeacherGroups(_ context.Context, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[id], nil
}

type fakeDirectory struct {
	groups map[string][]string
}

func (d *fakeDirectory) FindOrCreateTeacher(_ context.Context, id, name, _ string) (schedule.Teacher, error) {
	return schedule.TeacherFromDisplayName(id, name), nil
}

func (d *fakeDirectory) TeacherGroups(_ context.Context, id string) ([]string, error) {
	return d.groups[id], nil
}

type fakeLoader struct {
	repo   *fakeLessons
	feed   map[string][]schedule.Lesson
	mu     sync.Mutex
	loaded []string
}

func (l *fakeLoader) LoadGroup(ctx context.Context, group string) error {
	l.mu.Lock()
	l.loaded = append(l.loaded, group)
	l.mu.Unlock()
	return l.repo.ReplaceGroupLessons(ctx, group, l.feed[group])
}

var (
	testSemester = schedule.NewSemester(schedule.NewDate(2025, 3, 3), schedule.NewDate(2025, 3, 23))
	ivanov       = schedule.Teacher{ExternalID: "t-ivanov", LastName: "Иванов", FirstName: "Иван", Patronymic: "Иванович"}
	petrov       = schedule.Teacher{ExternalID: "t-petrov", LastName: "Петров", FirstName: "Пётр", Patronymic: "Петрович"}
)

func lesson(group string, date time.Time, start, end schedule.Clock, subject string, teacher schedule.Teacher) schedule.Lesson {
	return schedule.Lesson{
		Group:     group,
		Subject:   subject,
		Type:      schedule.LessonPractical,
		Teacher:   teacher,
		Classroom: "ГУК Б-416",
		Date:      date,
		Start:     start,
		End:       end,
		Week:      testSemester.WeekOf(date),
	}.WithControlSum()
}

func ptr[T any](v T) *T { return &v }
