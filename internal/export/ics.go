// Package export renders schedules into calendar files.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"schedulebot/internal/schedule"
)

// DefaultLessonLength is used when a time label has no end.
const DefaultLessonLength = 90 * time.Minute

const productID = "-//schedulebot//timetable//RU"

var clockRangeRe = regexp.MustCompile(`(\d{1,2})[:.](\d{2})(?:[\s\p{Zs}]*[-–—][\s\p{Zs}]*(\d{1,2})[:.](\d{2}))?`)

// ParseSlot reads "08:30-10:00" (or "08.30") into offsets from midnight.
func ParseSlot(label string) (start, end time.Duration, ok bool) {
	m := clockRangeRe.FindStringSubmatch(label)
	if m == nil {
		return 0, 0, false
	}
	start = clock(m[1], m[2])
	if m[3] != "" {
		end = clock(m[3], m[4])
	}
	if end <= start {
		end = start + DefaultLessonLength
	}
	return start, end, true
}

func clock(h, m string) time.Duration {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
}

// WeekCalendar builds one VEVENT per real lesson of week. weekStart is the
// Monday of that week; day i of week falls on weekStart+i days in loc.
func WeekCalendar(group string, week schedule.WeekSchedule, weekStart time.Time, loc *time.Location) *ics.Calendar {
	if loc == nil {
		loc = time.UTC
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Расписание " + group)
	cal.SetXWRTimezone(loc.String())

	stamp := time.Now()
	y, mo, d := weekStart.In(loc).Date()
	for i, day := range week {
		midnight := time.Date(y, mo, d+i, 0, 0, 0, 0, loc)
		for _, l := range day.Lessons {
			if l.Empty {
				continue
			}
			start, end, ok := ParseSlot(l.Time)
			if !ok {
				continue
			}
			at := midnight.Add(start)
			uid := fmt.Sprintf("%s-%s-%02d%02d@schedulebot", sanitizeUID(group), at.Format("20060102"), at.Hour(), at.Minute())
			ev := cal.AddEvent(uid)
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(at)
			ev.SetEndAt(midnight.Add(end))
			ev.SetSummary(summary(l.Subject, l.Kind))
			if l.Room != "" {
				ev.SetLocation(l.Room)
			}
			if desc := description(l.Teacher, l.Weeks); desc != "" {
				ev.SetDescription(desc)
			}
		}
	}
	return cal
}

// Render serializes cal as an .ics document.
func Render(cal *ics.Calendar) string { return cal.Serialize() }

func summary(subject, kind string) string {
	if kind == "" {
		return subject
	}
	return subject + " (" + kind + ")"
}

func description(teacher, weeks string) string {
	var parts []string
	if teacher != "" {
		parts = append(parts, teacher)
	}
	if weeks != "" {
		parts = append(parts, weeks)
	}
	return strings.Join(parts, "\n")
}

func sanitizeUID(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '@' || r == '/' {
			return '_'
		}
		return r
	}, s)
}
