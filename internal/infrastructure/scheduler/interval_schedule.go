package scheduler

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// IntervalSchedule fires every Interval. When Interval divides a day the
// runs are aligned to local midnight, so "6h" means 00:00, 06:00, 12:00 and
// 18:00 regardless of when the worker started.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time. A non-positive interval never fires.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.Interval <= 0 {
		return time.Time{}
	}
	if day%s.Interval != 0 {
		return t.Add(s.Interval)
	}

	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	slots := t.Sub(midnight)/s.Interval + 1
	return midnight.Add(slots * s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
