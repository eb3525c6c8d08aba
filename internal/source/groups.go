package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"schedulebot/internal/schedcache"
	logx "schedulebot/pkg/logx"
)

var ErrGroupNotFound = errors.New("source: group not found")

var (
	groupIDRe   = regexp.MustCompile(`id=(\d+)`)
	groupNameRe = regexp.MustCompile(`^([\d.]+)[\s\p{Zs}]*\(([^)]+)\)`)
)

// Group is one entry of the group index.
type Group struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
	URL       string `json:"url"`
}

// Key is the cache key of the group's timetable.
func (g Group) Key() schedcache.Key { return schedcache.Key{ID: g.ID, Code: g.Code} }

// splitGroupName turns "3.092.2.24 (200)" into its code and short name.
// Other shapes use the whole text for both.
func splitGroupName(text string) (code, short string) {
	text = strings.TrimSpace(text)
	if m := groupNameRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return text, text
}

// ParseGroupIndex extracts groups from a group_index.php page. Practice
// groups are skipped.
func ParseGroupIndex(doc *goquery.Document, baseURL string) []Group {
	var out []Group
	seen := map[string]bool{}
	doc.Find(`a[href*="group_shedule.php"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if href == "" || text == "" {
			return
		}
		if strings.Contains(strings.ToLower(text), "практика") {
			return
		}
		m := groupIDRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		code, short := splitGroupName(text)
		out = append(out, Group{
			ID:        m[1],
			Code:      code,
			ShortName: short,
			FullName:  text,
			URL:       strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/"),
		})
	})
	return out
}

// FetchGroups loads the group index of one department.
func (c *Client) FetchGroups(ctx context.Context, department int) ([]Group, error) {
	doc, err := c.document(ctx, c.url(groupsPath, url.Values{"dep": {strconv.Itoa(department)}}))
	if err != nil {
		return nil, err
	}
	return ParseGroupIndex(doc, c.base), nil
}

type groupLister interface {
	FetchGroups(ctx context.Context, department int) ([]Group, error)
}

// Directory caches the merged group index of the configured departments.
type Directory struct {
	src         groupLister
	departments []int
	ttl         time.Duration
	now         func() time.Time
	log         logx.Logger
	group       singleflight.Group

	mu        sync.Mutex
	groups    []Group
	fetchedAt time.Time
}

func NewDirectory(src groupLister, departments []int, ttl time.Duration, log logx.Logger) *Directory {
	if len(departments) == 0 {
		departments = []int{8}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Directory{
		src:         src,
		departments: departments,
		ttl:         ttl,
		now:         time.Now,
		log:         log.Component("groups"),
	}
}

// All returns every known group. A failed refresh keeps serving the previous
// list; the error surfaces only when no list was ever loaded. Concurrent
// refreshes share one fetch, and each caller stops waiting when its ctx ends.
func (d *Directory) All(ctx context.Context) ([]Group, error) {
	d.mu.Lock()
	groups, at := d.groups, d.fetchedAt
	d.mu.Unlock()
	if groups != nil && d.now().Sub(at) < d.ttl {
		return groups, nil
	}

	var err error
	select {
	case res := <-d.group.DoChan("groups", func() (any, error) { return d.refresh(context.WithoutCancel(ctx)) }):
		if res.Err == nil {
			return res.Val.([]Group), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.mu.Lock()
	groups = d.groups
	d.mu.Unlock()
	if groups != nil {
		d.log.Warn("group index refresh failed, serving stale list", logx.Err(err))
		return groups, nil
	}
	return nil, err
}

func (d *Directory) refresh(ctx context.Context) ([]Group, error) {
	var merged []Group
	var errs []error
	for _, dep := range d.departments {
		gs, err := d.src.FetchGroups(ctx, dep)
		if err != nil {
			errs = append(errs, fmt.Errorf("department %d: %w", dep, err))
			continue
		}
		merged = append(merged, gs...)
	}
	if err := errors.Join(errs...); err != nil && len(merged) == 0 {
		return nil, err
	}
	d.mu.Lock()
	d.groups = merged
	d.fetchedAt = d.now()
	d.mu.Unlock()
	d.log.Info("group index loaded", logx.Int("groups", len(merged)), logx.Int("departments", len(d.departments)))
	return merged, nil
}

// Search matches query against code, short name and full name, ignoring case.
func (d *Directory) Search(ctx context.Context, query string) ([]Group, error) {
	all, err := d.All(ctx)
	if err != nil {
		return nil, err
	}
	// A Caser keeps state between calls, so each search gets its own.
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	var out []Group
	for _, g := range all {
		if strings.Contains(fold.String(g.Code), q) ||
			strings.Contains(fold.String(g.ShortName), q) ||
			strings.Contains(fold.String(g.FullName), q) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (d *Directory) ByID(ctx context.Context, id string) (Group, error) {
	return d.find(ctx, func(g Group) bool { return g.ID == id })
}

func (d *Directory) ByCode(ctx context.Context, code string) (Group, error) {
	return d.find(ctx, func(g Group) bool { return g.Code == code })
}

// Lookup resolves a group id or code.
func (d *Directory) Lookup(ctx context.Context, idOrCode string) (Group, error) {
	return d.find(ctx, func(g Group) bool { return g.ID == idOrCode || g.Code == idOrCode })
}

func (d *Directory) find(ctx context.Context, match func(Group) bool) (Group, error) {
	all, err := d.All(ctx)
	if err != nil {
		return Group{}, err
	}
	for _, g := range all {
		if match(g) {
			return g, nil
		}
	}
	return Group{}, ErrGroupNotFound
}
