package bot

import (
	"strings"
	"testing"

	"schedulebot/internal/timetable"
)

func TestFormatLessonEscapes(t *testing.T) {
	t.Parallel()
	got := FormatLesson(timetable.Lesson{Time: "08:30", Subject: "C++ <практикум>", Teacher: "Иванов & Co", Weeks: "1–16 нед."}).String()
	for _, want := range []string{"🕐 <b>08:30</b>", "C++ &lt;практикум&gt;", "Иванов &amp; Co", "📌 1–16 нед."} {
		if !strings.Contains(got, want) {
			t.Fatalf("FormatLesson misses %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "🚪") {
		t.Fatalf("room line without room:\n%s", got)
	}
}

func TestFormatLessonEmptySlot(t *testing.T) {
	t.Parallel()
	got := FormatLesson(timetable.Lesson{Time: "10:15", Empty: true}).String()
	if got != "🕐 <b>10:15</b>\n<i>Занятий нет</i>" {
		t.Fatalf("FormatLesson = %q", got)
	}
}

func TestFormatToday(t *testing.T) {
	t.Parallel()
	free := FormatToday(timetable.Day{Name: "Воскресенье"}, 0, "ПИ-21").String()
	if !strings.Contains(free, "Сегодня нет занятий по расписанию") || strings.Contains(free, "Текущая неделя") {
		t.Fatalf("free day:\n%s", free)
	}
	busy := FormatToday(timetable.Day{Name: "Вторник", Date: "02.09.2025", Lessons: []timetable.Lesson{{Subject: "Физика"}}}, 2, "ПИ-21").String()
	for _, want := range []string{"<b>Группа:</b> ПИ-21", "Текущая неделя: 2", "<b>Вторник (02.09.2025)</b>", "Физика"} {
		if !strings.Contains(busy, want) {
			t.Fatalf("today misses %q:\n%s", want, busy)
		}
	}
}

func TestFormatWeek(t *testing.T) {
	t.Parallel()
	empty := []timetable.Day{{Name: "Понедельник"}, {Name: "Вторник"}}
	if got := FormatWeek(empty, 4, "ПИ-21", "").String(); !strings.Contains(got, "Расписание не найдено") {
		t.Fatalf("empty week:\n%s", got)
	}
	days := []timetable.Day{
		{Name: "Понедельник", IsToday: true, Lessons: []timetable.Lesson{{Subject: "Физика"}}},
		{Name: "Вторник"},
	}
	got := FormatWeek(days, 0, "ПИ-21", "📆 Учебный год 2025-2026").String()
	for _, want := range []string{"📆 Учебный год 2025-2026", "Понедельник — СЕГОДНЯ", "<i>Нет занятий</i>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("week misses %q:\n%s", want, got)
		}
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()
	if got := FormatError("").String(); !strings.HasSuffix(got, DefaultError) {
		t.Fatalf("FormatError = %q", got)
	}
}
