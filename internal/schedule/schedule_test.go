package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/timetable"
)

var nsk = time.FixedZone("NOVT", 7*3600)

func fixed(t time.Time) schedcache.Clock {
	return schedcache.ClockFunc(func() time.Time { return t })
}

func sample() timetable.Timetable {
	return timetable.Timetable{
		CurrentWeek: 5,
		Days: []timetable.Day{
			{Name: "Вторник", Lessons: []timetable.Lesson{{Time: "08:30", Subject: "Алгебра"}}},
			{Name: "Понедельник", Date: "01.09", Lessons: []timetable.Lesson{{Time: "10:15", Subject: "Физика"}}},
		},
	}
}

func newService(now time.Time, fetchErr error) *Service {
	cache := schedcache.New(schedcache.FetcherFunc(func(context.Context, schedcache.Key) (timetable.Timetable, error) {
		if fetchErr != nil {
			return timetable.Timetable{}, fetchErr
		}
		return sample(), nil
	}), schedcache.Options{Clock: fixed(now)})
	return New(cache, fixed(now), nsk)
}

func TestDay(t *testing.T) {
	t.Parallel()
	// 2025-09-02 02:00 UTC is Tuesday 09:00 in Novosibirsk.
	s := newService(time.Date(2025, 9, 2, 2, 0, 0, 0, time.UTC), nil)
	day, week, err := s.Day(context.Background(), schedcache.Key{ID: "1"})
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if week != 5 || day.Name != "Вторник" || !day.IsToday || day.Date != "02.09.2025" {
		t.Fatalf("day = %+v week %d", day, week)
	}
	if len(day.Lessons) != 1 || day.Lessons[0].Subject != "Алгебра" {
		t.Fatalf("lessons = %+v", day.Lessons)
	}
}

func TestDayMissingIsSynthesised(t *testing.T) {
	t.Parallel()
	// Sunday in Novosibirsk, still Saturday in UTC.
	s := newService(time.Date(2025, 9, 6, 20, 0, 0, 0, time.UTC), nil)
	day, _, err := s.Day(context.Background(), schedcache.Key{ID: "1"})
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if day.Name != "Воскресенье" || day.Date != "07.09.2025" || len(day.Lessons) != 0 || !day.IsToday {
		t.Fatalf("day = %+v", day)
	}
}

func TestWeekBackfillsCanonicalDays(t *testing.T) {
	t.Parallel()
	s := newService(time.Date(2025, 9, 2, 2, 0, 0, 0, time.UTC), nil)
	week, n, err := s.Week(context.Background(), schedcache.Key{ID: "1"})
	if err != nil {
		t.Fatalf("Week: %v", err)
	}
	if n != 5 || len(week) != 6 {
		t.Fatalf("week %d, %d days", n, len(week))
	}
	for i, name := range timetable.DayNames {
		if week[i].Name != name {
			t.Fatalf("day %d = %q, want %q", i, week[i].Name, name)
		}
		if week[i].IsToday != (name == "Вторник") {
			t.Fatalf("%s IsToday = %v", name, week[i].IsToday)
		}
	}
	if week[0].Date != "01.09" || week[5].Date != "06.09.2025" {
		t.Fatalf("dates = %q %q", week[0].Date, week[5].Date)
	}
	if week[0].Lessons[0].Subject != "Физика" || week[3].HasLessons() {
		t.Fatal("lessons misplaced")
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := newService(time.Now(), boom)
	if _, _, err := s.Day(context.Background(), schedcache.Key{ID: "1"}); !errors.Is(err, boom) {
		t.Fatalf("Day err = %v", err)
	}
	if _, _, err := s.Week(context.Background(), schedcache.Key{ID: "1"}); !errors.Is(err, boom) {
		t.Fatalf("Week err = %v", err)
	}
}

func TestWeekStart(t *testing.T) {
	t.Parallel()
	tests := map[time.Time]string{
		time.Date(2025, 9, 1, 12, 0, 0, 0, nsk): "2025-09-01",
		time.Date(2025, 9, 6, 23, 0, 0, 0, nsk): "2025-09-01",
		time.Date(2025, 9, 7, 9, 0, 0, 0, nsk):  "2025-09-01",
		time.Date(2025, 9, 8, 0, 0, 0, 0, nsk):  "2025-09-08",
	}
	for in, want := range tests {
		if got := WeekStart(in).Format("2006-01-02"); got != want {
			t.Fatalf("WeekStart(%v) = %s, want %s", in, got, want)
		}
	}
}
