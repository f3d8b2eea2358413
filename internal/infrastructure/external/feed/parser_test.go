package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

const groupFeedJSON = `{
  "group": "М3О-221Б-23",
  "01.09.2025": {
    "day": "Пн",
    "pairs": {
      "9:00:00": {
        "Физика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-1": "Иванов Иван Иванович"}, "type": {"ЛК": 1}, "room": {"r1": "3-141"}}
      }
    }
  },
  "08.09.2025": {
    "day": "Пн",
    "pairs": {
      "9:00:00": {
        "Физика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-1": "Иванов Иван Иванович"}, "type": {"ПЗ": 1}, "room": {"r1": "3-141"}, "lms": "", "teams": "", "other": ""}
      },
      "10:45:00": {
        "Физика": {"time_start": "10:45:00", "time_end": "12:15:00", "lector": {"uuid-1": "Иванов Иван Иванович"}, "type": {"ПЗ": 1}, "room": {"r1": "3-141"}}
      },
      "13:00:00": {
        "Химия": {"time_start": "13:00:00", "time_end": "14:30:00", "lector": {"00000000-0000-0000-0000-000000000000": "--"}, "type": {"ЛК": 1}, "room": {"r2": "4-101"}}
      },
      "14:45:00": {
        "Черчение": {"time_start": "bad", "time_end": "16:15:00", "lector": {"uuid-1": "Иванов Иван Иванович"}, "type": {"ЛР": 1}, "room": {"r3": "5-1"}}
      },
      "16:30:00": {
        "Экономика": {"time_start": "16:30:00", "time_end": "18:00:00", "lector": {"uuid-4": "Сидоров Сидор"}, "type": {"Семинар": 1}, "room": {"r4": "ГУК-1"}}
      }
    }
  },
  "09.09.2025": {
    "day": "Вт",
    "pairs": {
      "9:00:00": {
        "Математика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-2": "Петров Пётр Петрович", "uuid-3": "Смирнов Семён"}, "type": {"Экзамен": 1}, "room": {"r9": "2-202", "r1": "3-141"}}
      }
    }
  },
  "not-a-date": {}
}`

type fakeFetcher struct {
	group   []byte
	teacher []byte
	err     error
}

func (f *fakeFetcher) FetchGroup(ctx context.Context, group string) ([]byte, error) {
	return f.group, f.err
}

func (f *fakeFetcher) FetchTeacher(ctx context.Context, externalID string) ([]byte, error) {
	return f.teacher, f.err
}

type fakeDirectory struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{calls: make(map[string]int), fail: make(map[string]error)}
}

func (d *fakeDirectory) FindOrCreateTeacher(ctx context.Context, externalID, displayName, group string) (schedule.Teacher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[externalID]++
	if err := d.fail[externalID]; err != nil {
		return schedule.Teacher{}, err
	}
	return schedule.TeacherFromDisplayName(externalID, displayName), nil
}

func (d *fakeDirectory) TeacherGroups(ctx context.Context, externalID string) ([]string, error) {
	return nil, nil
}

func newTestParser(fetcher schedule.FeedFetcher, dir schedule.TeacherDirectory) *Parser {
	semester := schedule.NewSemester(schedule.NewDate(2025, 9, 8), schedule.NewDate(2025, 12, 31))
	cfg := DefaultParserConfig(semester)
	cfg.Workers = 2
	return NewParser(fetcher, dir, cfg)
}

func TestParser_ParseGroupSchedule(t *testing.T) {
	dir := newFakeDirectory()
	p := newTestParser(&fakeFetcher{group: []byte(groupFeedJSON)}, dir)

	lessons, err := p.ParseGroupSchedule(context.Background(), "М3О-221Б-23")
	require.NoError(t, err)
	require.Len(t, lessons, 4)

	physics := lessons[0]
	assert.Equal(t, "Физика", physics.Subject)
	assert.Equal(t, schedule.NewDate(2025, 9, 8), physics.Date)
	assert.Equal(t, "09:00", physics.Start.String())
	assert.Equal(t, "12:15", physics.End.String(), "double period merged")
	assert.Equal(t, schedule.LessonPractical, physics.Type)
	assert.Equal(t, "3-141", physics.Classroom)
	assert.Equal(t, "Иванов", physics.Teacher.LastName)
	assert.Equal(t, 1, physics.Week)
	assert.NotEmpty(t, physics.ControlSum)

	chemistry := lessons[1]
	assert.Equal(t, "Химия", chemistry.Subject)
	assert.True(t, chemistry.Teacher.IsPlaceholder())

	economics := lessons[2]
	assert.Equal(t, "Экономика", economics.Subject)
	assert.Equal(t, schedule.LessonLecture, economics.Type, "unknown type defaults to lecture")

	math := lessons[3]
	assert.Equal(t, schedule.NewDate(2025, 9, 9), math.Date)
	assert.Equal(t, schedule.LessonExam, math.Type)
	assert.Equal(t, "uuid-2", math.Teacher.ExternalID, "first lector wins")
	assert.Equal(t, "2-202", math.Classroom, "first room wins")

	assert.Equal(t, 1, dir.calls["uuid-1"], "teacher lookups are memoized per call")
	assert.Zero(t, dir.calls[schedule.PlaceholderTeacherID])
}

func TestParser_ControlSumsStableAcrossParses(t *testing.T) {
	fetcher := &fakeFetcher{group: []byte(groupFeedJSON)}

	first, err := newTestParser(fetcher, newFakeDirectory()).ParseGroupSchedule(context.Background(), "G")
	require.NoError(t, err)
	second, err := newTestParser(fetcher, newFakeDirectory()).ParseGroupSchedule(context.Background(), "G")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ControlSum, second[i].ControlSum)
	}
}

func TestParser_IsolatesFailingDay(t *testing.T) {
	dir := newFakeDirectory()
	dir.fail["uuid-2"] = errors.New("db down")
	p := newTestParser(&fakeFetcher{group: []byte(groupFeedJSON)}, dir)

	lessons, err := p.ParseGroupSchedule(context.Background(), "G")
	require.NoError(t, err)

	assert.Len(t, lessons, 3)
	for _, l := range lessons {
		assert.Equal(t, schedule.NewDate(2025, 9, 8), l.Date)
	}
}

// stallingDirectory blocks the first lookup of one teacher until its
// context is done.
type stallingDirectory struct {
	*fakeDirectory
	stallID string
	stalled atomic.Bool
}

func (d *stallingDirectory) FindOrCreateTeacher(ctx context.Context, externalID, displayName, group string) (schedule.Teacher, error) {
	if externalID == d.stallID && d.stalled.CompareAndSwap(false, true) {
		<-ctx.Done()
		return schedule.Teacher{}, ctx.Err()
	}
	return d.fakeDirectory.FindOrCreateTeacher(ctx, externalID, displayName, group)
}

const sharedTeacherFeedJSON = `{
  "08.09.2025": {"day": "Пн", "pairs": {"9:00:00": {"Физика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-x": "Иванов Иван"}, "type": {"ЛК": 1}, "room": {"r1": "3-141"}}}}},
  "09.09.2025": {"day": "Вт", "pairs": {"9:00:00": {"Химия": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-y": "Петров Пётр"}, "type": {"ЛК": 1}, "room": {"r1": "3-141"}}}}},
  "10.09.2025": {"day": "Ср", "pairs": {"9:00:00": {"Физика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {"uuid-x": "Иванов Иван"}, "type": {"ПЗ": 1}, "room": {"r1": "3-141"}}}}}
}`

func TestParser_SlowTeacherLookupDoesNotDropSiblingDays(t *testing.T) {
	dir := &stallingDirectory{fakeDirectory: newFakeDirectory(), stallID: "uuid-x"}
	semester := schedule.NewSemester(schedule.NewDate(2025, 9, 8), schedule.NewDate(2025, 12, 31))
	cfg := DefaultParserConfig(semester)
	cfg.Workers = 2
	cfg.DayTimeout = 300 * time.Millisecond
	p := NewParser(&fakeFetcher{group: []byte(sharedTeacherFeedJSON)}, dir, cfg)

	lessons, err := p.ParseGroupSchedule(context.Background(), "G")
	require.NoError(t, err)

	days := make(map[time.Time]bool)
	for _, l := range lessons {
		days[l.Date] = true
	}
	assert.True(t, days[schedule.NewDate(2025, 9, 9)])
	assert.True(t, days[schedule.NewDate(2025, 9, 10)], "day sharing the stalled teacher is kept")
	assert.True(t, days[schedule.NewDate(2025, 9, 8)], "stalled lookup is retried within the day budget")
}

func TestParser_CancelledCallerStopsWaiting(t *testing.T) {
	dir := &stallingDirectory{fakeDirectory: newFakeDirectory(), stallID: "uuid-x"}
	resolver := newTeacherResolver(dir, "G", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := resolver.resolve(ctx, "uuid-x", "Иванов Иван")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParser_FeedUnavailable(t *testing.T) {
	unavailable := schedule.FeedUnavailable("FetchGroup", "G", errors.New("timeout"))
	p := newTestParser(&fakeFetcher{err: unavailable}, newFakeDirectory())

	_, err := p.ParseGroupSchedule(context.Background(), "G")
	assert.ErrorIs(t, err, schedule.ErrFeedUnavailable)
}

func TestParser_MalformedFeed(t *testing.T) {
	for _, body := range []string{`[1, 2, 3]`, `"text"`, `{"08.09.2025": `} {
		p := newTestParser(&fakeFetcher{group: []byte(body)}, newFakeDirectory())

		_, err := p.ParseGroupSchedule(context.Background(), "G")
		assert.ErrorIs(t, err, schedule.ErrMalformedFeed, body)
	}
}

func TestParser_MalformedDayIsSkipped(t *testing.T) {
	body := `{
	  "08.09.2025": {"day": "Пн", "pairs": "oops"},
	  "09.09.2025": {"day": "Вт", "pairs": {"9:00:00": {"Физика": {"time_start": "9:00:00", "time_end": "10:30:00", "lector": {}, "type": {"ЛК": 1}, "room": {}}}}}
	}`
	p := newTestParser(&fakeFetcher{group: []byte(body)}, newFakeDirectory())

	lessons, err := p.ParseGroupSchedule(context.Background(), "G")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.True(t, lessons[0].Teacher.IsPlaceholder())
	assert.Empty(t, lessons[0].Classroom)
}

func TestParser_TeacherGroups(t *testing.T) {
	fetcher := &fakeFetcher{teacher: []byte(`{"groups": {"G2": {}, "G1": {}}, "schedule": {}}`)}
	p := newTestParser(fetcher, newFakeDirectory())

	groups, err := p.TeacherGroups(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G2"}, groups)
}

func TestFirstEntry(t *testing.T) {
	key, value, ok, err := firstEntry([]byte(`{"b": "2", "a": "1"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", key)
	assert.Equal(t, "2", value)

	key, _, ok, err = firstEntry([]byte(`["ЛР", "ЛК"]`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ЛР", key)

	_, _, ok, err = firstEntry([]byte(`null`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = firstEntry([]byte(`42`))
	assert.Error(t, err)
}
