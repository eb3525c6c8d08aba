package timetable

import "strings"

// Resolve picks the single lesson for a slot.
//
// The pool is numerator candidates followed by denominator candidates. The
// candidate whose weeks are nearest to week wins; on equal distance the
// earlier one in the pool wins. It returns false when the pool is empty or
// no candidate carries any week at all.
func Resolve(slot string, numerator, denominator []Candidate, week int) (Lesson, bool) {
	pool := make([]Candidate, 0, len(numerator)+len(denominator))
	pool = append(pool, numerator...)
	pool = append(pool, denominator...)

	best, bestDist := -1, NoDistance
	for i, c := range pool {
		if d := c.AllWeeks().Distance(week); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Lesson{}, false
	}
	return describe(slot, pool[best], week), true
}

func describe(slot string, c Candidate, week int) Lesson {
	all := c.AllWeeks()
	return Lesson{
		Time:        slot,
		Subject:     c.Subject,
		Teacher:     strings.Join(c.Teachers, ", "),
		Room:        c.Room,
		Kind:        activeKind(c.Kinds, week),
		Weeks:       weeksLabel(c, all),
		ActiveWeeks: all,
		StartWeek:   all.Min(),
		EndWeek:     all.Max(),
	}
}

// activeKind returns the kind running in week, else the kind with the week
// nearest to it. Week 0 means "no week known" and lists every kind.
func activeKind(kinds []KindInfo, week int) string {
	if len(kinds) == 0 {
		return ""
	}
	if week == 0 {
		seen := map[string]bool{}
		labels := make([]string, 0, len(kinds))
		for _, k := range kinds {
			if seen[k.Kind] {
				continue
			}
			seen[k.Kind] = true
			labels = append(labels, k.Kind)
		}
		return strings.Join(labels, ", ")
	}
	for _, k := range kinds {
		if k.Weeks.Contains(week) {
			return k.Kind
		}
	}
	active, gap := "", NoDistance
	for _, k := range kinds {
		if d := k.Weeks.Distance(week); d < gap {
			active, gap = k.Kind, d
		}
	}
	return active
}

// weeksLabel renders the full recurrence. With several kinds every segment
// carries its kind prefix: "л.: 23–32 нед. п.з.: 33–38 нед.".
func weeksLabel(c Candidate, all WeekSet) string {
	if len(c.Kinds) < 2 {
		return all.Format()
	}
	parts := make([]string, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		seg := kindPrefix(k.Kind)
		if w := k.Weeks.Format(); w != "" {
			seg += ": " + w
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, " ")
}
