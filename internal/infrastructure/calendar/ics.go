// Package calendar renders group schedules as iCalendar (RFC 5545) files.
package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/timeutil"
)

const (
	// ProductID identifies the generator in PRODID.
	ProductID = "-//schedule-hub//SemesterSchedule//RU"

	uidSuffix      = "@schedule-hub"
	localTimestamp = "20060102T150405"
)

// typeLabels are the short labels appended to event summaries.
var typeLabels = map[schedule.LessonType]string{
	schedule.LessonLecture:   "ЛК",
	schedule.LessonPractical: "ПЗ",
	schedule.LessonLab:       "ЛР",
	schedule.LessonExam:      "ЭКЗ",
}

// Exporter builds calendars in a fixed timezone.
type Exporter struct {
	location *time.Location
	now      func() time.Time
}

// NewExporter creates an Exporter. A nil location means Moscow time.
func NewExporter(location *time.Location) *Exporter {
	if location == nil {
		location = timeutil.MoscowTZ
	}
	return &Exporter{location: location, now: time.Now}
}

// Build returns the calendar of a group with one event per lesson.
func (e *Exporter) Build(group string, lessons []schedule.Lesson) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName("Расписание " + group + " (семестр)")
	cal.SetXWRTimezone(e.location.String())

	stamp := e.now().UTC()
	for _, l := range lessons {
		e.addEvent(cal, group, l, stamp)
	}
	return cal
}

// Write serializes the calendar of a group to w.
func (e *Exporter) Write(w io.Writer, group string, lessons []schedule.Lesson) error {
	return e.Build(group, lessons).SerializeTo(w)
}

func (e *Exporter) addEvent(cal *ics.Calendar, group string, l schedule.Lesson, stamp time.Time) {
	event := cal.AddEvent(EventUID(group, l))
	event.SetDtStampTime(stamp)

	tz := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{e.location.String()}}
	event.SetProperty(ics.ComponentPropertyDtStart, l.Start.On(l.Date, e.location).Format(localTimestamp), tz)
	event.SetProperty(ics.ComponentPropertyDtEnd, l.End.On(l.Date, e.location).Format(localTimestamp), tz)

	event.SetSummary(summary(l))
	if classroom := strings.TrimSpace(l.Classroom); classroom != "" {
		event.SetLocation(classroom)
	}
	event.SetDescription(description(group, l))
}

// EventUID is stable across exports so calendar clients update events in place.
func EventUID(group string, l schedule.Lesson) string {
	base := strings.Join([]string{group, schedule.DateKey(l.Date), l.Start.String(), l.Subject}, "|")
	sum := sha256.Sum256([]byte(base))
	return "lesson-" + hex.EncodeToString(sum[:]) + uidSuffix
}

func summary(l schedule.Lesson) string {
	if label, ok := typeLabels[l.Type]; ok {
		return l.Subject + " (" + label + ")"
	}
	return l.Subject
}

func description(group string, l schedule.Lesson) string {
	var b strings.Builder
	b.WriteString("Группа: ")
	if l.Group != "" {
		b.WriteString(l.Group)
	} else {
		b.WriteString(group)
	}
	if name := l.Teacher.DisplayName(); name != "" && !l.Teacher.IsPlaceholder() {
		b.WriteString("\nПреподаватель: ")
		b.WriteString(name)
	}
	if l.Description != "" {
		b.WriteString("\n")
		b.WriteString(l.Description)
	}
	return b.String()
}
