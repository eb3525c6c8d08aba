package timetable

import "testing"

func weeksCandidate(subject string, from, to int) Candidate {
	var ws []int
	for w := from; w <= to; w++ {
		ws = append(ws, w)
	}
	return Candidate{Subject: subject, Weeks: NewWeekSet(ws...)}
}

func TestResolvePicksNearestVariant(t *testing.T) {
	t.Parallel()
	a := weeksCandidate("A", 10, 15)
	b := weeksCandidate("B", 16, 20)

	tests := []struct {
		week int
		want string
	}{
		{week: 16, want: "B"},
		{week: 15, want: "A"},
		{week: 21, want: "B"},
		{week: 3, want: "A"},
	}
	for _, tt := range tests {
		got, ok := Resolve("08:30", []Candidate{a}, []Candidate{b}, tt.week)
		if !ok {
			t.Fatalf("week %d: no lesson", tt.week)
		}
		if got.Subject != tt.want {
			t.Fatalf("week %d: Subject = %q, want %q", tt.week, got.Subject, tt.want)
		}
		if got.Time != "08:30" {
			t.Fatalf("Time = %q", got.Time)
		}
	}
}

func TestResolveTieKeepsNumeratorFirst(t *testing.T) {
	t.Parallel()
	num := weeksCandidate("num", 10, 10)
	den := weeksCandidate("den", 12, 12)
	got, ok := Resolve("", []Candidate{num}, []Candidate{den}, 11)
	if !ok || got.Subject != "num" {
		t.Fatalf("got %+v ok=%v, want num", got, ok)
	}
}

func TestResolveEmptyPool(t *testing.T) {
	t.Parallel()
	if _, ok := Resolve("09:00", nil, nil, 5); ok {
		t.Fatal("empty pool resolved to a lesson")
	}
	noWeeks := Candidate{Subject: "Химия", Kinds: []KindInfo{{Kind: "лабораторная работа"}}}
	if _, ok := Resolve("09:00", []Candidate{noWeeks}, nil, 5); ok {
		t.Fatal("candidate without weeks resolved to a lesson")
	}
}

func TestResolveActiveKind(t *testing.T) {
	t.Parallel()
	c := Candidate{
		Subject:  "История",
		Teachers: []string{"доц. Иванов И.И.", "Петров П.П."},
		Kinds: []KindInfo{
			{Kind: "лекция", Weeks: ParseWeeks("23-32")},
			{Kind: "практическое занятие", Weeks: ParseWeeks("33-38")},
		},
	}
	tests := []struct {
		week int
		want string
	}{
		{week: 25, want: "лекция"},
		{week: 35, want: "практическое занятие"},
		{week: 40, want: "практическое занятие"},
		{week: 20, want: "лекция"},
		{week: 0, want: "лекция, практическое занятие"},
	}
	for _, tt := range tests {
		got, ok := Resolve("10:15", []Candidate{c}, nil, tt.week)
		if !ok {
			t.Fatalf("week %d: no lesson", tt.week)
		}
		if got.Kind != tt.want {
			t.Fatalf("week %d: Kind = %q, want %q", tt.week, got.Kind, tt.want)
		}
		if got.Weeks != "л.: 23–32 нед. п.з.: 33–38 нед." {
			t.Fatalf("Weeks = %q", got.Weeks)
		}
		if got.StartWeek != 23 || got.EndWeek != 38 || got.ActiveWeeks.Len() != 16 {
			t.Fatalf("bounds = [%d,%d] len %d", got.StartWeek, got.EndWeek, got.ActiveWeeks.Len())
		}
		if got.Teacher != "доц. Иванов И.И., Петров П.П." {
			t.Fatalf("Teacher = %q", got.Teacher)
		}
	}
}

func TestResolveSingleKindHasNoPrefix(t *testing.T) {
	t.Parallel()
	c := Candidate{Subject: "Математика", Kinds: []KindInfo{{Kind: "лекция", Weeks: ParseWeeks("1-16")}}}
	got, _ := Resolve("", []Candidate{c}, nil, 5)
	if got.Weeks != "1–16 нед." {
		t.Fatalf("Weeks = %q, want %q", got.Weeks, "1–16 нед.")
	}
}
