package timetable

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// minFragmentRunes is the shortest fragment text treated as content.
const minFragmentRunes = 5

// minSubjectRunes is the shortest subject kept after parsing.
const minSubjectRunes = 2

var (
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)

	titleRe = regexp.MustCompile(`(?i)(?:доц\.?|проф\.?|ассист\.?|ст\.[\s\p{Zs}]*препод\.?|ст\.[\s\p{Zs}]*преп\.?|преп\.?|преподаватель)`)

	roomInlineRe = regexp.MustCompile(`(?i)(?:а\.|ауд\.?)[\s\p{Zs}]*(\d+[а-яА-Я]?(?:/\d+)?)`)
	roomPrefixRe = regexp.MustCompile(`(?i)(^|[\s\p{Zs}])(?:а\.|ауд\.?)[\s\p{Zs}]*`)

	parenGroupRe  = regexp.MustCompile(`\(([^)]+)\)`)
	kindWeeksRe   = regexp.MustCompile(`(?i)(лаб|л|п\.?з|сем|конс|экз)\.?[\s\p{Zs}]*:[\s\p{Zs}]*([^a-zа-я]+)нед\.?`)
	leadingKindRe = regexp.MustCompile(`(?i)^(лаб|л|п\.?з|сем|конс|экз)\.?[\s\p{Zs}]*[:\s\p{Zs}]?[\s\p{Zs}]*(.*)`)
	trailingWeek  = regexp.MustCompile(`нед\.?$`)
	bareWeeksRe   = regexp.MustCompile(`(\d+(?:[-–]\d+)?(?:,[\s\p{Zs}]*\d+(?:[-–]\d+)?)*)[\s\p{Zs}]*нед`)
)

// fragment is the working state of one <br>-separated piece of a cell.
type fragment struct {
	text  string
	doc   *goquery.Selection
	cand  Candidate
	strip []string // teacher names and titles to subtract from the subject
	// roomMarker is the exact room text found in the fragment.
	roomMarker string
	// weeksMarker is a bare "2-8 нед" expression found outside any kind annotation.
	weeksMarker string
}

// ParseCell extracts candidate lessons from the inner markup of one cell.
//
// Steps run in a fixed order because the subject is whatever is left after
// every other field has been removed: split, filter noise, teachers, room,
// kinds/weeks, subject, orphan merge, final subject filter.
func ParseCell(markup string) []Candidate {
	var frags []*fragment
	for _, part := range splitFragments(markup) {
		f := loadFragment(part)
		if f == nil || isNoise(f.text) {
			continue
		}
		extractTeachers(f)
		extractRoom(f)
		extractKinds(f)
		extractSubject(f)
		frags = append(frags, f)
	}
	merged := mergeOrphans(frags)

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		c.Subject = collapseSpace(c.Subject)
		if utf8.RuneCountInString(c.Subject) < minSubjectRunes {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseCellSelection is ParseCell for an already parsed cell.
func ParseCellSelection(cell *goquery.Selection) []Candidate {
	if cell == nil || cell.Length() == 0 {
		return nil
	}
	markup, err := cell.Html()
	if err != nil {
		return nil
	}
	return ParseCell(markup)
}

func splitFragments(markup string) []string {
	if strings.TrimSpace(markup) == "" {
		return nil
	}
	return lineBreakRe.Split(markup, -1)
}

func loadFragment(part string) *fragment {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + part + "</div>"))
	if err != nil {
		return nil
	}
	root := doc.Find("body > div").First()
	text := strings.TrimSpace(root.Text())
	return &fragment{text: text, doc: root, cand: Candidate{Raw: text}}
}

func isNoise(text string) bool {
	if text == "" || text == "-" || text == "—" {
		return true
	}
	return utf8.RuneCountInString(text) < minFragmentRunes
}

// extractTeachers reads person links and prefixes each with the academic
// title found in the text node right before the link.
func extractTeachers(f *fragment) {
	f.doc.Find(`a[href*="teacher"]`).Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		if name == "" {
			return
		}
		title := ""
		if n := a.Get(0); n != nil && n.PrevSibling != nil && n.PrevSibling.Type == html.TextNode {
			if m := titleRe.FindAllString(n.PrevSibling.Data, -1); len(m) > 0 {
				title = strings.TrimSpace(m[len(m)-1])
			}
		}
		full := name
		if title != "" {
			full = title + " " + name
		}
		f.cand.Teachers = append(f.cand.Teachers, full)
		f.strip = append(f.strip, name)
		if title != "" {
			f.strip = append(f.strip, title)
		}
	})
}

// extractRoom prefers a room link and falls back to an inline "а. 305" marker.
func extractRoom(f *fragment) {
	if room := strings.TrimSpace(f.doc.Find(`a[href*="room"]`).First().Text()); room != "" {
		f.cand.Room = room
		f.roomMarker = room
		return
	}
	if m := roomInlineRe.FindStringSubmatch(f.text); m != nil {
		f.cand.Room = "а." + m[1]
		f.roomMarker = m[0]
	}
}

// extractKinds reads "(л.: 1-16 нед.)"-style annotations. When none are
// present it falls back to a bare "1-16 нед." anywhere in the text.
func extractKinds(f *fragment) {
	for _, pm := range parenGroupRe.FindAllStringSubmatch(f.text, -1) {
		content := pm[1]
		found := false
		for _, km := range kindWeeksRe.FindAllStringSubmatch(content, -1) {
			found = true
			f.cand.Kinds = append(f.cand.Kinds, KindInfo{
				Kind:  KindLabel(km[1]),
				Weeks: ParseWeeks(km[2]),
			})
		}
		if found {
			continue
		}
		if km := leadingKindRe.FindStringSubmatch(content); km != nil {
			rest := strings.TrimSpace(trailingWeek.ReplaceAllString(km[2], ""))
			f.cand.Kinds = append(f.cand.Kinds, KindInfo{
				Kind:  KindLabel(km[1]),
				Weeks: ParseWeeks(rest),
			})
		}
	}
	if len(f.cand.Kinds) > 0 {
		return
	}
	if m := bareWeeksRe.FindStringSubmatch(f.text); m != nil {
		f.cand.Weeks = ParseWeeks(m[1])
		f.weeksMarker = m[0]
	}
}

// extractSubject subtracts everything already recognised from the text.
func extractSubject(f *fragment) {
	s := f.text
	for _, t := range f.strip {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(t))
		if err != nil {
			continue
		}
		s = re.ReplaceAllString(s, "")
	}
	if f.roomMarker != "" {
		s = strings.Replace(s, f.roomMarker, "", 1)
		s = roomPrefixRe.ReplaceAllString(s, "$1")
	}
	if f.weeksMarker != "" {
		s = strings.Replace(s, f.weeksMarker, "", 1)
	}
	s = parenGroupRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "*", "")
	f.cand.Subject = trimSubject(collapseSpace(s))
}

// mergeOrphans folds fragments without week or kind data into a neighbour:
// into the next fragment when there is one, else into the previous kept one.
// An orphan with no neighbour is dropped.
func mergeOrphans(frags []*fragment) []Candidate {
	out := make([]Candidate, 0, len(frags))
	for i, f := range frags {
		cur := f.cand
		if !cur.orphan() {
			out = append(out, cur)
			continue
		}
		switch {
		case i+1 < len(frags):
			next := &frags[i+1].cand
			next.Subject = cur.Subject + " " + next.Subject
			if len(next.Teachers) == 0 && len(cur.Teachers) > 0 {
				next.Teachers = cur.Teachers
			}
		case len(out) > 0:
			prev := &out[len(out)-1]
			prev.Subject = prev.Subject + " " + cur.Subject
			if len(prev.Teachers) == 0 && len(cur.Teachers) > 0 {
				prev.Teachers = cur.Teachers
			}
		}
	}
	return out
}

func collapseSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func trimSubject(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;.-", r)
	})
}
