// Package schedule answers "what is on today" and "what is on this week" for a
// group on top of the timetable cache.
package schedule

import (
	"context"
	"time"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/timetable"
)

// DateLayout is the date label format used in day headers.
const DateLayout = "02.01.2006"

var weekdayNames = [...]string{
	time.Sunday:    "Воскресенье",
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
}

// WeekdayName is the Russian name of t's weekday.
func WeekdayName(t time.Time) string { return weekdayNames[t.Weekday()] }

// WeekSchedule is Monday..Saturday in canonical order.
type WeekSchedule []timetable.Day

type Cache interface {
	Get(ctx context.Context, key schedcache.Key) (timetable.Timetable, error)
	Invalidate(key schedcache.Key)
	InvalidateAll()
	RefreshAll(ctx context.Context) (int, error)
}

type Service struct {
	cache Cache
	clock schedcache.Clock
	loc   *time.Location
}

func New(cache Cache, clock schedcache.Clock, loc *time.Location) *Service {
	if clock == nil {
		clock = schedcache.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{cache: cache, clock: clock, loc: loc}
}

// Now is the current time in the configured location.
func (s *Service) Now() time.Time { return s.clock.Now().In(s.loc) }

func (s *Service) Location() *time.Location { return s.loc }

// Day returns today's schedule and the current academic week. A day missing
// from the timetable (Sunday, or a day off) comes back empty with today's date.
func (s *Service) Day(ctx context.Context, key schedcache.Key) (timetable.Day, int, error) {
	tt, err := s.cache.Get(ctx, key)
	if err != nil {
		return timetable.Day{}, 0, err
	}
	now := s.Now()
	name := WeekdayName(now)
	day, ok := tt.Find(name)
	if !ok {
		day = timetable.Day{Name: name}
	}
	day.IsToday = true
	if day.Date == "" {
		day.Date = now.Format(DateLayout)
	}
	return day, tt.CurrentWeek, nil
}

// Week returns all six teaching days in order, backfilling the ones the
// timetable lacks. Dates are those of the current calendar week.
func (s *Service) Week(ctx context.Context, key schedcache.Key) (WeekSchedule, int, error) {
	tt, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	now := s.Now()
	today := WeekdayName(now)
	monday := WeekStart(now)

	out := make(WeekSchedule, 0, len(timetable.DayNames))
	for i, name := range timetable.DayNames {
		day := timetable.Day{Name: name}
		for _, d := range tt.Days {
			if d.Name == name {
				day = d
				break
			}
		}
		day.IsToday = name == today
		if day.Date == "" {
			day.Date = monday.AddDate(0, 0, i).Format(DateLayout)
		}
		out = append(out, day)
	}
	return out, tt.CurrentWeek, nil
}

// WeekStart is midnight of the Monday of t's week, in t's location.
// Sunday belongs to the week that just ended.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func (s *Service) Invalidate(key schedcache.Key) { s.cache.Invalidate(key) }

func (s *Service) InvalidateAll() { s.cache.InvalidateAll() }

func (s *Service) RefreshAll(ctx context.Context) (int, error) { return s.cache.RefreshAll(ctx) }
