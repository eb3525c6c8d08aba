package timetable

import (
	"reflect"
	"testing"
)

func TestParseCellLinkedTeacherAndRoom(t *testing.T) {
	t.Parallel()
	got := ParseCell(`Математика (л.: 1-16 нед.) доц. <a href="teacher_shedule.php?id=7">Иванов И.И.</a> <a href="room_shedule.php?id=3">а.305</a>`)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (%+v)", len(got), got)
	}
	c := got[0]
	if c.Subject != "Математика" {
		t.Fatalf("Subject = %q, want %q", c.Subject, "Математика")
	}
	if !reflect.DeepEqual(c.Teachers, []string{"доц. Иванов И.И."}) {
		t.Fatalf("Teachers = %q", c.Teachers)
	}
	if c.Room != "а.305" {
		t.Fatalf("Room = %q, want а.305", c.Room)
	}
	if len(c.Kinds) != 1 || c.Kinds[0].Kind != "лекция" {
		t.Fatalf("Kinds = %+v", c.Kinds)
	}
	if c.Kinds[0].Weeks.Min() != 1 || c.Kinds[0].Weeks.Max() != 16 || c.Kinds[0].Weeks.Len() != 16 {
		t.Fatalf("Weeks = %v", []int(c.Kinds[0].Weeks))
	}
}

func TestParseCellInlineRoom(t *testing.T) {
	t.Parallel()
	got := ParseCell(`Физика (п.з.: 1-16 нед.) <a href="teacher_shedule.php?id=2">Петров П.П.</a> а.210`)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	c := got[0]
	if c.Subject != "Физика" {
		t.Fatalf("Subject = %q", c.Subject)
	}
	if c.Room != "а.210" {
		t.Fatalf("Room = %q, want а.210", c.Room)
	}
	if len(c.Teachers) != 1 || c.Teachers[0] != "Петров П.П." {
		t.Fatalf("Teachers = %q", c.Teachers)
	}
	if c.Kinds[0].Kind != "практическое занятие" {
		t.Fatalf("Kind = %q", c.Kinds[0].Kind)
	}
}

func TestParseCellMultipleKinds(t *testing.T) {
	t.Parallel()
	got := ParseCell(`История (л.: 23-32 нед. п.з.: 33-38 нед.) ст. преп. <a href="teacher.php?id=1">Кузнецов К.К.</a>`)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	c := got[0]
	if len(c.Kinds) != 2 {
		t.Fatalf("Kinds = %+v", c.Kinds)
	}
	if c.Kinds[0].Kind != "лекция" || c.Kinds[1].Kind != "практическое занятие" {
		t.Fatalf("kind labels = %q, %q", c.Kinds[0].Kind, c.Kinds[1].Kind)
	}
	if c.Kinds[1].Weeks.Min() != 33 || c.Kinds[1].Weeks.Max() != 38 {
		t.Fatalf("practice weeks = %v", []int(c.Kinds[1].Weeks))
	}
	if c.Teachers[0] != "ст. преп. Кузнецов К.К." {
		t.Fatalf("Teacher = %q", c.Teachers[0])
	}
	if c.Subject != "История" {
		t.Fatalf("Subject = %q", c.Subject)
	}
}

func TestParseCellKindFallbacks(t *testing.T) {
	t.Parallel()

	lab := ParseCell(`Химия (лаб.) а.12`)
	if len(lab) != 1 || len(lab[0].Kinds) != 1 || lab[0].Kinds[0].Kind != "лабораторная работа" {
		t.Fatalf("leading kind = %+v", lab)
	}
	if lab[0].Kinds[0].Weeks.Len() != 0 {
		t.Fatalf("lab weeks = %v, want empty", []int(lab[0].Kinds[0].Weeks))
	}

	bare := ParseCell(`Биология 2-8 нед.`)
	if len(bare) != 1 {
		t.Fatalf("bare weeks len = %d", len(bare))
	}
	if len(bare[0].Kinds) != 0 || bare[0].Weeks.Min() != 2 || bare[0].Weeks.Max() != 8 {
		t.Fatalf("bare weeks = %+v", bare[0])
	}
	if bare[0].Subject != "Биология" {
		t.Fatalf("bare Subject = %q", bare[0].Subject)
	}
}

func TestParseCellOrphanMergesIntoNext(t *testing.T) {
	t.Parallel()
	got := ParseCell(`Иностранный язык<br>(п.з.: 2-10 нед.) <a href="teacher.php?id=4">Смирнова С.С.</a> а.101`)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (%+v)", len(got), got)
	}
	if got[0].Subject != "Иностранный язык" {
		t.Fatalf("Subject = %q", got[0].Subject)
	}
	if got[0].Room != "а.101" {
		t.Fatalf("Room = %q", got[0].Room)
	}
}

func TestParseCellOrphanMergesIntoPrevious(t *testing.T) {
	t.Parallel()
	got := ParseCell(`Физика (1-8 нед.)<br>подгруппа 2`)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Subject != "Физика подгруппа 2" {
		t.Fatalf("Subject = %q", got[0].Subject)
	}
}

func TestParseCellStackedLessons(t *testing.T) {
	t.Parallel()
	got := ParseCell(`Алгебра (л.: 1-8 нед.)<br/>Геометрия (л.: 9-16 нед.)`)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Subject != "Алгебра" || got[1].Subject != "Геометрия" {
		t.Fatalf("subjects = %q, %q", got[0].Subject, got[1].Subject)
	}
}

func TestParseCellNoise(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "-", "—", "abc", "&nbsp;", "<br><br>", "Физкультура"} {
		if got := ParseCell(in); len(got) != 0 {
			t.Fatalf("ParseCell(%q) = %+v, want none", in, got)
		}
	}
}

func TestKindLabel(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"л":    "лекция",
		"Л.":   "лекция",
		"п.з":  "практическое занятие",
		"ПЗ":   "практическое занятие",
		"лаб":  "лабораторная работа",
		"сем":  "семинар",
		"конс": "консультация",
		"экз":  "экзамен",
		"зач":  "зач",
	}
	for in, want := range tests {
		if got := KindLabel(in); got != want {
			t.Fatalf("KindLabel(%q) = %q, want %q", in, got, want)
		}
	}
	if ParseKind("п.з") != KindPractice || KindPractice.String() != "практическое занятие" {
		t.Fatal("ParseKind/String mismatch")
	}
}
