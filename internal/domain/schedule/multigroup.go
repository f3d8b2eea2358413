package schedule

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// GroupSeparator разделяет группы в поле Group совместного занятия.
const GroupSeparator = ", "

type dedupKey struct {
	date    time.Time
	start   Clock
	end     Clock
	subject string
}

// MergeMultiGroups сводит расписания нескольких групп в одну ленту.
//
// Совместная лекция приходит в расписании каждой группы. Занятия с одинаковыми
// (дата, начало, конец, предмет) схлопываются в первое встреченное, а их
// группы объединяются. Группы обходятся в отсортированном порядке.
func MergeMultiGroups(perGroup map[string][]Lesson) []Lesson {
	groups := make([]string, 0, len(perGroup))
	for g := range perGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var (
		order     []dedupKey
		byKey     = make(map[dedupKey]Lesson)
		groupSets = make(map[dedupKey]map[string]struct{})
	)

	for _, g := range groups {
		for _, l := range perGroup[g] {
			key := dedupKey{date: DateOf(l.Date), start: l.Start, end: l.End, subject: l.Subject}
			if _, seen := byKey[key]; !seen {
				byKey[key] = l.Clone()
				groupSets[key] = make(map[string]struct{})
				order = append(order, key)
			}
			collectGroups(groupSets[key], g, l)
		}
	}

	result := make([]Lesson, 0, len(order))
	for _, key := range order {
		l := byKey[key]
		if set := groupSets[key]; len(set) > 1 {
			names := make([]string, 0, len(set))
			for name := range set {
				names = append(names, name)
			}
			sort.Strings(names)
			l.Group = strings.Join(names, GroupSeparator)
			l.Groups = names
		}
		result = append(result, l)
	}

	slices.SortStableFunc(result, compareLessons)
	return result
}

func collectGroups(set map[string]struct{}, key string, l Lesson) {
	add := func(name string) {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}

	add(key)
	for _, name := range strings.Split(l.Group, ",") {
		add(name)
	}
	for _, name := range l.Groups {
		add(name)
	}
}
