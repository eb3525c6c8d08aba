package timetable

import "strings"

// DayNames is the canonical Monday..Saturday ordering used by the upstream site.
var DayNames = []string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"}

// KindInfo pairs a lesson kind label with the weeks it applies to.
type KindInfo struct {
	Kind  string
	Weeks WeekSet
}

// Candidate is one parsed lesson occurrence from a single cell fragment.
// Candidates live only for the duration of one assemble pass.
type Candidate struct {
	Subject  string
	Teachers []string
	Room     string
	Kinds    []KindInfo
	// Weeks is the fallback set used when no kind annotation was found.
	Weeks WeekSet
	Raw   string
}

// AllWeeks returns the union of every kind's weeks and the fallback set.
func (c Candidate) AllWeeks() WeekSet {
	out := c.Weeks
	for _, k := range c.Kinds {
		out = out.Union(k.Weeks)
	}
	return out
}

func (c Candidate) orphan() bool {
	return len(c.Weeks) == 0 && len(c.Kinds) == 0
}

// Lesson is the resolved, externally visible lesson for one slot.
type Lesson struct {
	Time    string `json:"time"`
	Subject string `json:"subject,omitempty"`
	Teacher string `json:"teacher,omitempty"`
	Room    string `json:"room,omitempty"`
	// Kind is the lesson kind for the queried week. Empty means unspecified.
	Kind string `json:"kind,omitempty"`
	// Weeks is the human readable recurrence, e.g. "л.: 23–32 нед. п.з.: 33–38 нед.".
	Weeks       string  `json:"weeks,omitempty"`
	ActiveWeeks WeekSet `json:"active_weeks,omitempty"`
	StartWeek   int     `json:"start_week,omitempty"`
	EndWeek     int     `json:"end_week,omitempty"`
	// Empty marks a slot that exists in the timetable but has no lesson this week.
	Empty bool `json:"empty,omitempty"`
}

// EmptySlot returns the marker for a slot without a resolvable lesson.
func EmptySlot(time string) Lesson { return Lesson{Time: time, Empty: true} }

type Day struct {
	Name    string   `json:"name"`
	Date    string   `json:"date,omitempty"`
	IsToday bool     `json:"is_today"`
	Lessons []Lesson `json:"lessons"`
}

// HasLessons reports whether the day holds at least one non-empty lesson.
func (d Day) HasLessons() bool {
	for _, l := range d.Lessons {
		if !l.Empty {
			return true
		}
	}
	return false
}

// Timetable is the result of assembling one upstream page.
type Timetable struct {
	Days        []Day `json:"days"`
	CurrentWeek int   `json:"current_week"`
}

// Find returns the day whose name contains name (case-insensitive).
func (t Timetable) Find(name string) (Day, bool) {
	want := strings.ToLower(name)
	for _, d := range t.Days {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, true
		}
	}
	return Day{}, false
}
