package timetable

import "strings"

type Kind int

const (
	KindUnknown Kind = iota
	KindLecture
	KindPractice
	KindLab
	KindSeminar
	KindConsultation
	KindExam
)

type kindEntry struct {
	kind   Kind
	label  string
	abbrev string
	// exact codes match the whole lowered code; partial ones match anywhere.
	exact   []string
	partial []string
}

// Order matters: the first entry that matches wins.
var kindTable = []kindEntry{
	{kind: KindLecture, label: "лекция", abbrev: "л.", exact: []string{"л"}, partial: []string{"л."}},
	{kind: KindPractice, label: "практическое занятие", abbrev: "п.з.", partial: []string{"п.з", "пз"}},
	{kind: KindLab, label: "лабораторная работа", partial: []string{"лаб"}},
	{kind: KindSeminar, label: "семинар", partial: []string{"сем"}},
	{kind: KindConsultation, label: "консультация", partial: []string{"конс"}},
	{kind: KindExam, label: "экзамен", partial: []string{"экз"}},
}

func lookupKind(code string) (kindEntry, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return kindEntry{}, false
	}
	for _, e := range kindTable {
		for _, x := range e.exact {
			if c == x {
				return e, true
			}
		}
		for _, p := range e.partial {
			if strings.Contains(c, p) {
				return e, true
			}
		}
	}
	return kindEntry{}, false
}

// ParseKind maps an abbreviation such as "п.з" to its Kind.
func ParseKind(code string) Kind {
	e, _ := lookupKind(code)
	return e.kind
}

// KindLabel maps an abbreviation to its display label. Unknown codes are
// returned unchanged.
func KindLabel(code string) string {
	if e, ok := lookupKind(code); ok {
		return e.label
	}
	return code
}

// kindPrefix is the short form used in multi-kind week strings.
func kindPrefix(label string) string {
	for _, e := range kindTable {
		if e.label == label && e.abbrev != "" {
			return e.abbrev
		}
	}
	return label
}

func (k Kind) String() string {
	for _, e := range kindTable {
		if e.kind == k {
			return e.label
		}
	}
	return ""
}
