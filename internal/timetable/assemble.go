package timetable

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var currentWeekRe = regexp.MustCompile(`(?i)текущая[\s\p{Zs}]+неделя[\s\p{Zs}]+(?:номер[\s\p{Zs}]+)?(\d+)`)

// Parity markers that identify the main timetable by its header row.
var parityMarkers = []string{"Числитель", "Знаменатель"}

const todayBgColor = "yellow"

// Assemble parses a full timetable page.
func Assemble(r io.Reader) (Timetable, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Timetable{}, fmt.Errorf("parse timetable page: %w", err)
	}
	return AssembleDocument(doc), nil
}

// AssembleDocument walks the main table row by row. A page without the
// main table yields an empty timetable with week 0.
func AssembleDocument(doc *goquery.Document) Timetable {
	table := mainTable(doc)
	if table == nil {
		return Timetable{}
	}
	a := &assembler{week: ParseCurrentWeek(doc.Find("body").Text())}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		a.row(row)
	})
	a.flush()
	return Timetable{Days: a.days, CurrentWeek: a.week}
}

// ParseCurrentWeek finds "текущая неделя [номер] N" in page text; 0 if absent.
func ParseCurrentWeek(text string) int {
	m := currentWeekRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// IsNumeratorWeek reports which parity applies: week 0 and odd weeks use the
// numerator column, even weeks the denominator.
func IsNumeratorWeek(week int) bool { return week == 0 || week%2 != 0 }

func mainTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		head := t.Find("tr").First().Text()
		for _, m := range parityMarkers {
			if strings.Contains(head, m) {
				found = t
				return false
			}
		}
		return true
	})
	return found
}

type assembler struct {
	week int
	cur  *Day
	days []Day
}

func (a *assembler) row(row *goquery.Selection) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() == 0 {
		return
	}
	first := cells.Eq(0)
	if name, ok := matchDay(strings.TrimSpace(first.Text())); ok {
		a.flush()
		a.cur = &Day{
			Name:    name,
			IsToday: strings.EqualFold(strings.TrimSpace(first.AttrOr("bgcolor", "")), todayBgColor),
		}
		a.slot(cells, 1)
		return
	}
	if a.cur != nil && cells.Length() >= 2 {
		a.slot(cells, 0)
	}
}

// slot handles one time slot starting at cell index at: time label, then
// either one shared cell (colspan 2) or a numerator and a denominator cell.
func (a *assembler) slot(cells *goquery.Selection, at int) {
	label := strings.TrimSpace(cells.Eq(at).Text())
	cell := cells.Eq(at + 1)

	numerator := ParseCellSelection(cell)
	denominator := numerator
	if colspan(cell) != 2 {
		denominator = ParseCellSelection(cells.Eq(at + 2))
	}

	var lesson Lesson
	var ok bool
	if IsNumeratorWeek(a.week) {
		lesson, ok = Resolve(label, numerator, nil, a.week)
	} else {
		lesson, ok = Resolve(label, nil, denominator, a.week)
	}
	if !ok {
		lesson = EmptySlot(label)
	}
	a.cur.Lessons = append(a.cur.Lessons, lesson)
}

func (a *assembler) flush() {
	if a.cur != nil && len(a.cur.Lessons) > 0 {
		a.days = append(a.days, *a.cur)
	}
	a.cur = nil
}

func matchDay(text string) (string, bool) {
	for _, d := range DayNames {
		if strings.Contains(text, d) {
			return d, true
		}
	}
	return "", false
}

func colspan(s *goquery.Selection) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.AttrOr("colspan", "1")))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
