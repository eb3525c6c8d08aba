package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	logx "schedulebot/pkg/logx"
)

var (
	weekBodyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)[\s\p{Zs}]*неделя`),
		regexp.MustCompile(`(?i)неделя[\s\p{Zs}]*(\d+)`),
		regexp.MustCompile(`(?i)week[\s\p{Zs}]*(\d+)`),
	}
	semesterRe = regexp.MustCompile(`(\d{4})[\s\p{Zs}]*-[\s\p{Zs}]*(\d{4})`)
	firstNumRe = regexp.MustCompile(`\d+`)
)

// WeekInfo is the academic calendar position of today.
type WeekInfo struct {
	Week     int    `json:"week"`
	Date     string `json:"date"`
	Semester string `json:"semester"`
}

// Header is the week line shown above schedules.
func (w WeekInfo) Header() string {
	if w.Week > 0 {
		return fmt.Sprintf("📆 %d неделя (%s)", w.Week, w.Semester)
	}
	return "📆 Учебный год " + w.Semester
}

// AcademicYear is the "YYYY-YYYY" label for t; the year starts in September.
func AcademicYear(t time.Time) string {
	y := t.Year()
	if t.Month() < time.September {
		y--
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}

// ParseWeeksPage reads the highlighted date of the weeks calendar. The week
// number is the first number of the highlighted cell's row, falling back to
// "N неделя" phrases in the page text.
func ParseWeeksPage(doc *goquery.Document, now time.Time) WeekInfo {
	var info WeekInfo
	doc.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		bg, _ := td.Attr("bgcolor")
		if !strings.EqualFold(strings.TrimSpace(bg), "yellow") {
			return true
		}
		info.Date = strings.TrimSpace(td.Text())
		first := td.Parent().Find("td").First()
		if m := firstNumRe.FindString(first.Text()); m != "" {
			info.Week, _ = strconv.Atoi(m)
		}
		return false
	})
	if info.Week == 0 {
		body := doc.Find("body").Text()
		for _, re := range weekBodyRes {
			if m := re.FindStringSubmatch(body); m != nil {
				info.Week, _ = strconv.Atoi(m[1])
				break
			}
		}
	}
	if m := semesterRe.FindStringSubmatch(doc.Find("title").Text()); m != nil {
		info.Semester = m[1] + "-" + m[2]
	} else {
		info.Semester = AcademicYear(now)
	}
	if info.Date == "" {
		info.Date = now.Format("02.01.2006")
	}
	return info
}

// FetchWeek loads the weeks calendar page.
func (c *Client) FetchWeek(ctx context.Context, now time.Time) (WeekInfo, error) {
	doc, err := c.document(ctx, c.base+weeksPath+"?fancy")
	if err != nil {
		return WeekInfo{}, err
	}
	return ParseWeeksPage(doc, now), nil
}

type weekFetcher interface {
	FetchWeek(ctx context.Context, now time.Time) (WeekInfo, error)
}

// Weeks caches the calendar position for ttl with stale fallback. When the
// page was never loaded a week 0 placeholder is returned. Concurrent misses
// share one fetch; a caller whose ctx ends first falls back like a failure.
type Weeks struct {
	src   weekFetcher
	ttl   time.Duration
	now   func() time.Time
	log   logx.Logger
	group singleflight.Group

	mu        sync.Mutex
	info      *WeekInfo
	fetchedAt time.Time
}

func NewWeeks(src weekFetcher, ttl time.Duration, now func() time.Time, log logx.Logger) *Weeks {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Weeks{src: src, ttl: ttl, now: now, log: log.Component("weeks")}
}

func (w *Weeks) cached() (*WeekInfo, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info, w.fetchedAt
}

func (w *Weeks) Current(ctx context.Context) WeekInfo {
	now := w.now()
	if info, at := w.cached(); info != nil && now.Sub(at) < w.ttl {
		return *info
	}
	ch := w.group.DoChan("week", func() (any, error) {
		info, err := w.src.FetchWeek(context.WithoutCancel(ctx), now)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.info = &info
		w.fetchedAt = now
		w.mu.Unlock()
		return info, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(WeekInfo)
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if info, _ := w.cached(); info != nil {
		w.log.Warn("week info refresh failed, serving stale", logx.Err(err))
		return *info
	}
	w.log.Warn("week info unavailable", logx.Err(err))
	return WeekInfo{Date: now.Format("02.01.2006"), Semester: AcademicYear(now)}
}
