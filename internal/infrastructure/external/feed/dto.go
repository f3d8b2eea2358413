package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/schedule-hub/schedule-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEED DTOs
// ══════════════════════════════════════════════════════════════════════════════
//
// Group feed:
//
//	{
//	  "group": "М3О-221Б-23",
//	  "08.09.2025": {
//	    "day": "Пн",
//	    "pairs": {
//	      "9:00:00": {
//	        "Физика": {
//	          "time_start": "9:00:00", "time_end": "10:30:00",
//	          "lector": {"<uuid>": "Иванов Иван Иванович"},
//	          "type": {"ЛР": 1},
//	          "room": {"<uuid>": "3-141"}
//	        }
//	      }
//	    }
//	  }
//	}
//
// "First lector" and "first room" depend on key order, which Go maps lose,
// so those objects stay raw and are walked with a json.Decoder.

// groupKey is the top-level key carrying the group name instead of a day.
const groupKey = "group"

// DayDTO is one day of the group feed.
type DayDTO struct {
	Day   string                                `json:"day"`
	Pairs map[string]map[string]json.RawMessage `json:"pairs"`
}

// LessonDTO is one lesson entry inside a pair slot.
type LessonDTO struct {
	TimeStart string          `json:"time_start"`
	TimeEnd   string          `json:"time_end"`
	Lector    json.RawMessage `json:"lector"`
	Type      json.RawMessage `json:"type"`
	Room      json.RawMessage `json:"room"`
	LMS       string          `json:"lms"`
	Teams     string          `json:"teams"`
	Other     string          `json:"other"`
}

// TeacherFeedDTO is the root of a teacher feed. Only the group list is used.
type TeacherFeedDTO struct {
	Groups map[string]json.RawMessage `json:"groups"`
}

// dayEntry is a decoded top-level day key.
type dayEntry struct {
	Date time.Time
	Raw  json.RawMessage
}

// decodeGroupFeed splits the top-level object into day entries.
// Keys that are not dates are returned in skipped.
func decodeGroupFeed(raw []byte) (days []dayEntry, skipped []string, err error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, nil, fmt.Errorf("decode feed root: %w", err)
	}
	if root == nil {
		return nil, nil, errors.New("feed root is not an object")
	}

	for key, value := range root {
		if key == groupKey {
			continue
		}
		date, err := time.Parse(timeutil.FeedDateLayout, key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		days = append(days, dayEntry{Date: date, Raw: value})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	sort.Strings(skipped)
	return days, skipped, nil
}

// decodeTeacherGroups returns the sorted group names of a teacher feed.
func decodeTeacherGroups(raw []byte) ([]string, error) {
	var dto TeacherFeedDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("decode teacher feed: %w", err)
	}

	groups := make([]string, 0, len(dto.Groups))
	for name := range dto.Groups {
		if name != "" {
			groups = append(groups, name)
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// firstEntry returns the first key and its string value of a JSON object.
// For an array it returns the first string element as the key.
// ok is false for null, empty or non-container values.
func firstEntry(raw json.RawMessage) (key, value string, ok bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", "", false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return "", "", false, err
	}

	switch tok {
	case json.Delim('{'):
		if !dec.More() {
			return "", "", false, nil
		}
		keyTok, err := dec.Token()
		if err != nil {
			return "", "", false, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return "", "", false, err
		}
		var s string
		if json.Unmarshal(v, &s) != nil {
			s = string(v)
		}
		return keyTok.(string), s, true, nil

	case json.Delim('['):
		for dec.More() {
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return "", "", false, err
			}
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s, "", true, nil
			}
		}
		return "", "", false, nil
	}

	return "", "", false, fmt.Errorf("expected object or array, got %v", tok)
}
