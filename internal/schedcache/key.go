package schedcache

import (
	"context"
	"strings"
	"time"

	"schedulebot/internal/timetable"
)

// Key identifies a group. The upstream site accepts either a numeric id or a
// dotted group code.
type Key struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

// String is the cache key: the id when present, else the code.
func (k Key) String() string {
	if id := strings.TrimSpace(k.ID); id != "" {
		return id
	}
	return strings.TrimSpace(k.Code)
}

func (k Key) IsZero() bool { return k.String() == "" }

// Fetcher loads and assembles one group's timetable.
type Fetcher interface {
	FetchTimetable(ctx context.Context, key Key) (timetable.Timetable, error)
}

type FetcherFunc func(ctx context.Context, key Key) (timetable.Timetable, error)

func (f FetcherFunc) FetchTimetable(ctx context.Context, key Key) (timetable.Timetable, error) {
	return f(ctx, key)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
