package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a Schedule built from a standard 5-field cron expression:
// minute hour day-of-month month day-of-week. Fields accept *, */n, n, n-m,
// n-m/s and comma-separated lists of those. Times are matched in the zone of
// the time passed to Next.
//
// Examples:
//   - "0 4 * * *"    - every day at 04:00
//   - "*/30 * * * *" - every 30 minutes
//   - "0 6 * * 1-6"  - 06:00 Monday to Saturday
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

const cronSearchHorizon = 366 * 24 * 60

var cronFields = [...]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCronExpression parses a cron expression string.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	targets := [...]*[]int{&ce.minutes, &ce.hours, &ce.days, &ce.months, &ce.weekdays}

	for i, f := range cronFields {
		values, err := parseField(fields[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", f.name, err)
		}
		*targets[i] = values
	}
	return ce, nil
}

// parseField parses a comma-separated list of cron terms into sorted unique values.
func parseField(field string, min, max int) ([]int, error) {
	var result []int
	for _, term := range strings.Split(field, ",") {
		values, err := parseTerm(strings.TrimSpace(term), min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

func parseTerm(term string, min, max int) ([]int, error) {
	if term == "" {
		return nil, fmt.Errorf("empty term")
	}

	step := 1
	if base, s, ok := strings.Cut(term, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", s)
		}
		step, term = n, base
	}

	start, end := min, max
	switch {
	case term == "*":
	case strings.Contains(term, "-"):
		lo, hi, _ := strings.Cut(term, "-")
		var err error
		if start, err = parseBound(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = parseBound(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", term)
		}
	default:
		v, err := parseBound(term, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var values []int
	for v := start; v <= end; v += step {
		values = append(values, v)
	}
	return values, nil
}

func parseBound(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// or the zero time if nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	for range cronSearchHorizon {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return slices.Contains(ce.minutes, t.Minute()) &&
		slices.Contains(ce.hours, t.Hour()) &&
		slices.Contains(ce.days, t.Day()) &&
		slices.Contains(ce.months, int(t.Month())) &&
		slices.Contains(ce.weekdays, int(t.Weekday()))
}
