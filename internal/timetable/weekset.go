package timetable

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxWeek bounds parsed week numbers. Larger values are treated as garbage.
const MaxWeek = 100

// NoDistance is the distance of an empty week set to any week.
const NoDistance = math.MaxInt

var (
	weekRangeRe  = regexp.MustCompile(`(\d+)[\s\p{Zs}]*[-–][\s\p{Zs}]*(\d+)`)
	weekSingleRe = regexp.MustCompile(`\d+`)
)

// WeekSet is a sorted set of positive academic week numbers.
// The zero value is the empty set. Values are never mutated after construction.
type WeekSet []int

// NewWeekSet builds a set from arbitrary values, dropping duplicates and
// values outside 1..MaxWeek.
func NewWeekSet(weeks ...int) WeekSet {
	if len(weeks) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(weeks))
	out := make(WeekSet, 0, len(weeks))
	for _, w := range weeks {
		if w <= 0 || w > MaxWeek {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Ints(out)
	return out
}

// ParseWeeks parses expressions like "23", "23-25", "23–27, 30-32".
// Malformed tokens are skipped; the result is empty for unparseable input.
func ParseWeeks(text string) WeekSet {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var weeks []int
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if m := weekRangeRe.FindStringSubmatch(tok); m != nil {
			from, err1 := strconv.Atoi(m[1])
			to, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			if from < 1 {
				from = 1
			}
			if to > MaxWeek {
				to = MaxWeek
			}
			for w := from; w <= to; w++ {
				weeks = append(weeks, w)
			}
			continue
		}
		if m := weekSingleRe.FindString(tok); m != "" {
			if w, err := strconv.Atoi(m); err == nil {
				weeks = append(weeks, w)
			}
		}
	}
	return NewWeekSet(weeks...)
}

func (s WeekSet) Len() int { return len(s) }

// Sorted returns the weeks in ascending order as a fresh slice.
func (s WeekSet) Sorted() []int { return append([]int(nil), s...) }

func (s WeekSet) Contains(week int) bool {
	i := sort.SearchInts(s, week)
	return i < len(s) && s[i] == week
}

// Min returns the smallest week, or 0 for the empty set.
func (s WeekSet) Min() int {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Max returns the largest week, or 0 for the empty set.
func (s WeekSet) Max() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (s WeekSet) Union(o WeekSet) WeekSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	out := make(WeekSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) || j < len(o) {
		switch {
		case j >= len(o) || (i < len(s) && s[i] < o[j]):
			out = append(out, s[i])
			i++
		case i >= len(s) || o[j] < s[i]:
			out = append(out, o[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	return out
}

// Distance is 0 when week is in the set, otherwise the smallest absolute
// difference to any member. The empty set is at NoDistance.
func (s WeekSet) Distance(week int) int {
	if len(s) == 0 {
		return NoDistance
	}
	best := NoDistance
	for _, w := range s {
		d := w - week
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
			if d == 0 {
				break
			}
		}
	}
	return best
}

func (s WeekSet) stepRun(step int) bool {
	for i := 1; i < len(s); i++ {
		if s[i]-s[i-1] != step {
			return false
		}
	}
	return true
}

// Format renders the set compactly: "23–27 нед." for runs (step 1 or 2)
// longer than two weeks and for any set above three weeks, "23,27 нед." otherwise.
func (s WeekSet) Format() string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n > 2 && (s.stepRun(1) || s.stepRun(2)), n > 3:
		return fmt.Sprintf("%d–%d нед.", s[0], s[n-1])
	}
	parts := make([]string, n)
	for i, w := range s {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ",") + " нед."
}

func (s WeekSet) String() string { return s.Format() }
