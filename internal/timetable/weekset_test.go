package timetable

import (
	"reflect"
	"testing"
)

func TestParseWeeks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want WeekSet
	}{
		{name: "range and single", in: "23-25,27", want: WeekSet{23, 24, 25, 27}},
		{name: "en dash with spaces", in: " 1 – 3 ", want: WeekSet{1, 2, 3}},
		{name: "several ranges", in: "23-27, 30-32", want: WeekSet{23, 24, 25, 26, 27, 30, 31, 32}},
		{name: "duplicates collapse", in: "5,5,4-6", want: WeekSet{4, 5, 6}},
		{name: "garbage skipped", in: "abc, 7, -, x-y", want: WeekSet{7}},
		{name: "zero dropped", in: "0,2", want: WeekSet{2}},
		{name: "reversed range is empty", in: "9-3", want: nil},
		{name: "empty", in: "", want: nil},
		{name: "whitespace", in: "   ", want: nil},
		{name: "non-breaking spaces", in: "1\u00a0-\u00a016", want: WeekSet{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}},
		{name: "non-breaking after comma", in: "2,\u00a04\u00a0–\u00a05", want: WeekSet{2, 4, 5}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseWeeks(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseWeeks(%q) = %v, want %v", tt.in, []int(got), []int(tt.want))
			}
		})
	}
}

func TestParseWeeksNeverNonPositive(t *testing.T) {
	t.Parallel()
	inputs := []string{"-5", "0-0", "-3-2", "1-", ",,,", "99999999999999999999", "2-999"}
	for _, in := range inputs {
		for _, w := range ParseWeeks(in) {
			if w <= 0 || w > MaxWeek {
				t.Fatalf("ParseWeeks(%q) contains %d", in, w)
			}
		}
	}
}

func TestWeekSetSortedIsCopy(t *testing.T) {
	t.Parallel()
	s := NewWeekSet(9, 2, 5)
	got := s.Sorted()
	if !reflect.DeepEqual(got, []int{2, 5, 9}) {
		t.Fatalf("Sorted() = %v, want [2 5 9]", got)
	}
	got[0] = 100
	if s.Min() != 2 {
		t.Fatalf("Sorted aliases the set: Min() = %d", s.Min())
	}
	if NewWeekSet().Sorted() != nil {
		t.Fatal("Sorted() of empty set is not nil")
	}
}

func TestWeekSetFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   WeekSet
		want string
	}{
		{in: NewWeekSet(23, 24, 25, 26, 27), want: "23–27 нед."},
		{in: NewWeekSet(23, 25, 27, 29), want: "23–29 нед."},
		{in: NewWeekSet(23, 27), want: "23,27 нед."},
		{in: NewWeekSet(3, 1, 7), want: "1,3,7 нед."},
		{in: NewWeekSet(1, 2, 5, 9), want: "1–9 нед."},
		{in: NewWeekSet(4), want: "4 нед."},
		{in: NewWeekSet(4, 5), want: "4,5 нед."},
		{in: nil, want: ""},
	}
	for _, tt := range tests {
		if got := tt.in.Format(); got != tt.want {
			t.Fatalf("Format(%v) = %q, want %q", []int(tt.in), got, tt.want)
		}
	}
}

func TestFormatReparseKeepsBounds(t *testing.T) {
	t.Parallel()
	sets := []WeekSet{
		NewWeekSet(1, 2, 3, 4),
		NewWeekSet(10, 12, 14),
		NewWeekSet(2, 9, 11, 30),
		NewWeekSet(5, 8),
		NewWeekSet(17),
	}
	for _, s := range sets {
		back := ParseWeeks(s.Format())
		if back.Min() != s.Min() || back.Max() != s.Max() {
			t.Fatalf("reparse of %q = [%d,%d], want [%d,%d]", s.Format(), back.Min(), back.Max(), s.Min(), s.Max())
		}
	}
}

func TestWeekSetDistanceAndUnion(t *testing.T) {
	t.Parallel()
	s := NewWeekSet(10, 11, 12, 13, 14, 15)
	if d := s.Distance(12); d != 0 {
		t.Fatalf("Distance(12) = %d, want 0", d)
	}
	if d := s.Distance(21); d != 6 {
		t.Fatalf("Distance(21) = %d, want 6", d)
	}
	if d := WeekSet(nil).Distance(3); d != NoDistance {
		t.Fatalf("empty Distance = %d, want NoDistance", d)
	}

	u := NewWeekSet(1, 5).Union(NewWeekSet(3, 5, 9))
	if !reflect.DeepEqual(u, WeekSet{1, 3, 5, 9}) {
		t.Fatalf("Union = %v", []int(u))
	}
	if !u.Contains(9) || u.Contains(4) {
		t.Fatalf("Contains mismatch on %v", []int(u))
	}
}
