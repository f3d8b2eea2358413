package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARSER
// ══════════════════════════════════════════════════════════════════════════════

// ParserConfig configures feed parsing.
type ParserConfig struct {
	// Semester bounds parsing: days before Semester.Start are skipped.
	Semester schedule.Semester

	// Workers limits how many days are parsed concurrently.
	Workers int

	// DayTimeout bounds one day's parse, teacher lookups included.
	DayTimeout time.Duration

	// LookupTimeout bounds one shared teacher lookup (default: DayTimeout/2).
	// It is detached from the day that started it, so a day that times out
	// does not fail the other days waiting on the same teacher.
	LookupTimeout time.Duration

	Logger *slog.Logger
}

// DefaultParserConfig returns sensible defaults.
func DefaultParserConfig(semester schedule.Semester) ParserConfig {
	return ParserConfig{
		Semester:   semester,
		Workers:    8,
		DayTimeout: 10 * time.Second,
	}
}

// Parser turns raw feed JSON into baseline lessons.
type Parser struct {
	fetcher   schedule.FeedFetcher
	directory schedule.TeacherDirectory
	config    ParserConfig
	logger    *slog.Logger
}

// NewParser creates a new Parser.
func NewParser(fetcher schedule.FeedFetcher, directory schedule.TeacherDirectory, config ParserConfig) *Parser {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.DayTimeout <= 0 {
		config.DayTimeout = 10 * time.Second
	}
	if config.LookupTimeout <= 0 || config.LookupTimeout > config.DayTimeout {
		config.LookupTimeout = config.DayTimeout / 2
	}

	return &Parser{
		fetcher:   fetcher,
		directory: directory,
		config:    config,
		logger:    config.Logger.With("component", "feed_parser"),
	}
}

// ParseGroupSchedule fetches and parses a group's feed.
//
// Returns schedule.ErrFeedUnavailable when the feed cannot be fetched or is
// empty and schedule.ErrMalformedFeed when its root is not an object. A broken
// day or lesson is logged and skipped.
func (p *Parser) ParseGroupSchedule(ctx context.Context, group string) ([]schedule.Lesson, error) {
	raw, err := p.fetcher.FetchGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	days, skipped, err := decodeGroupFeed(raw)
	if err != nil {
		return nil, schedule.MalformedFeed("ParseGroupSchedule", group, err)
	}
	if len(skipped) > 0 {
		p.logger.Warn("skipping feed keys that are not dates", "group", group, "keys", skipped)
	}

	days = slices.DeleteFunc(days, func(d dayEntry) bool {
		return d.Date.Before(p.config.Semester.Start)
	})

	resolver := newTeacherResolver(p.directory, group, p.config.LookupTimeout)
	perDay := make([][]schedule.Lesson, len(days))

	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for i, day := range days {
		g.Go(func() error {
			perDay[i] = p.parseDaySafely(ctx, group, day, resolver)
			return nil
		})
	}
	_ = g.Wait()

	var lessons []schedule.Lesson
	for _, dayLessons := range perDay {
		lessons = append(lessons, dayLessons...)
	}
	slices.SortStableFunc(lessons, func(a, b schedule.Lesson) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return int(a.Start) - int(b.Start)
	})

	p.logger.Info("group schedule parsed", "group", group, "days", len(days), "lessons", len(lessons))
	return lessons, nil
}

// TeacherGroups returns the groups listed in a teacher's feed.
func (p *Parser) TeacherGroups(ctx context.Context, externalID string) ([]string, error) {
	raw, err := p.fetcher.FetchTeacher(ctx, externalID)
	if err != nil {
		return nil, err
	}

	groups, err := decodeTeacherGroups(raw)
	if err != nil {
		return nil, schedule.MalformedFeed("TeacherGroups", externalID, err)
	}
	return groups, nil
}

// parseDaySafely isolates one day: errors, timeouts and panics give an empty day.
func (p *Parser) parseDaySafely(ctx context.Context, group string, day dayEntry, resolver *teacherResolver) (lessons []schedule.Lesson) {
	log := p.logger.With("group", group, "date", schedule.DateKey(day.Date))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while parsing day", "panic", r, "stack", string(debug.Stack()))
			lessons = nil
		}
	}()

	dayCtx, cancel := context.WithTimeout(ctx, p.config.DayTimeout)
	defer cancel()

	lessons, err := p.parseDay(dayCtx, group, day, resolver, log)
	if err != nil {
		log.Warn("skipping day", "error", err)
		return nil
	}
	return lessons
}

func (p *Parser) parseDay(ctx context.Context, group string, day dayEntry, resolver *teacherResolver, log *slog.Logger) ([]schedule.Lesson, error) {
	var dto DayDTO
	if err := json.Unmarshal(day.Raw, &dto); err != nil {
		return nil, fmt.Errorf("decode day: %w", err)
	}

	slots := make([]string, 0, len(dto.Pairs))
	for slot := range dto.Pairs {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	var lessons []schedule.Lesson
	for _, slot := range slots {
		subjects := make([]string, 0, len(dto.Pairs[slot]))
		for subject := range dto.Pairs[slot] {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)

		for _, subject := range subjects {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			lesson, err := p.parseLesson(ctx, group, subject, day.Date, dto.Pairs[slot][subject], resolver, log)
			if err != nil {
				if errors.Is(err, schedule.ErrMalformedLesson) {
					log.Warn("skipping malformed lesson", "slot", slot, "subject", subject, "error", err)
					continue
				}
				return nil, err
			}
			lessons = append(lessons, lesson)
		}
	}

	return schedule.MergeDoublePeriods(lessons), nil
}

func (p *Parser) parseLesson(
	ctx context.Context,
	group, subject string,
	date time.Time,
	raw json.RawMessage,
	resolver *teacherResolver,
	log *slog.Logger,
) (schedule.Lesson, error) {
	var dto LessonDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("decode lesson", err)
	}

	start, err := schedule.ParseClock(dto.TimeStart)
	if err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("time_start", err)
	}
	end, err := schedule.ParseClock(dto.TimeEnd)
	if err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("time_end", err)
	}

	typeCode, _, _, err := firstEntry(dto.Type)
	if err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("type", err)
	}
	lessonType, known := schedule.ParseLessonType(typeCode)
	if !known {
		log.Debug("unknown lesson type, defaulting to lecture", "code", typeCode, "subject", subject)
	}

	_, classroom, _, err := firstEntry(dto.Room)
	if err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("room", err)
	}

	teacherID, teacherName, _, err := firstEntry(dto.Lector)
	if err != nil {
		return schedule.Lesson{}, schedule.MalformedLesson("lector", err)
	}
	teacher, err := resolver.resolve(ctx, teacherID, teacherName)
	if err != nil {
		return schedule.Lesson{}, fmt.Errorf("resolve teacher %s: %w", teacherID, err)
	}

	lesson := schedule.Lesson{
		Group:     group,
		Subject:   strings.TrimSpace(subject),
		Type:      lessonType,
		Teacher:   teacher,
		Classroom: strings.TrimSpace(classroom),
		Date:      date,
		Start:     start,
		End:       end,
		Week:      p.config.Semester.WeekOf(date),
	}
	return lesson.WithControlSum(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEACHER RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// teacherResolver memoizes directory lookups for one ParseGroupSchedule call.
// Concurrent days asking for the same teacher share one lookup.
type teacherResolver struct {
	directory schedule.TeacherDirectory
	group     string
	timeout   time.Duration

	mu     sync.Mutex
	cache  map[string]schedule.Teacher
	flight singleflight.Group
}

// maxLookupAttempts bounds how often a day rejoins a lookup that timed out.
const maxLookupAttempts = 3

var errLookupTimeout = errors.New("teacher lookup timed out")

func newTeacherResolver(directory schedule.TeacherDirectory, group string, timeout time.Duration) *teacherResolver {
	return &teacherResolver{
		directory: directory,
		group:     group,
		timeout:   timeout,
		cache:     make(map[string]schedule.Teacher),
	}
}

func (r *teacherResolver) resolve(ctx context.Context, externalID, displayName string) (schedule.Teacher, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || externalID == schedule.PlaceholderTeacherID {
		return schedule.PlaceholderTeacher(), nil
	}
	displayName = strings.TrimSpace(displayName)
	key := strings.ToLower(externalID)

	var lastErr error
	for range maxLookupAttempts {
		r.mu.Lock()
		cached, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return cached, nil
		}

		ch := r.flight.DoChan(key, func() (any, error) {
			return r.lookup(ctx, key, externalID, displayName)
		})
		select {
		case <-ctx.Done():
			return schedule.Teacher{}, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(schedule.Teacher), nil
			}
			if !errors.Is(res.Err, errLookupTimeout) {
				return schedule.Teacher{}, res.Err
			}
			lastErr = res.Err
		}
	}
	return schedule.Teacher{}, lastErr
}

// lookup runs detached from the caller's cancellation: the day that started it
// may give up while others still wait for the result.
func (r *teacherResolver) lookup(ctx context.Context, key, externalID, displayName string) (schedule.Teacher, error) {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	t, err := r.directory.FindOrCreateTeacher(lookupCtx, externalID, displayName, r.group)
	if err != nil {
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			return schedule.Teacher{}, fmt.Errorf("%w: %s: %v", errLookupTimeout, externalID, err)
		}
		return schedule.Teacher{}, err
	}

	r.mu.Lock()
	r.cache[key] = t
	r.mu.Unlock()
	return t, nil
}
