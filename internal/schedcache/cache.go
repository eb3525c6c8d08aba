package schedcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"schedulebot/internal/eventbus"
	"schedulebot/internal/timetable"
	logx "schedulebot/pkg/logx"
)

var ErrInvalidKey = errors.New("schedcache: empty group key")

const (
	DefaultTTL          = 30 * time.Minute
	DefaultHardRefresh  = 12 * time.Hour
	DefaultFetchTimeout = 10 * time.Second
)

type Options struct {
	// TTL is the soft per-entry lifetime.
	TTL time.Duration
	// HardRefresh is the epoch length. Entries fetched before the current
	// epoch started are stale regardless of TTL.
	HardRefresh  time.Duration
	FetchTimeout time.Duration
	// Workers bounds RefreshAll parallelism.
	Workers int
	Clock   Clock
	Log     logx.Logger
	Events  eventbus.Publisher
}

// Failure is the payload of stale and failed events.
type Failure struct {
	Key string
	Err error
}

type entry struct {
	key       Key
	tt        timetable.Timetable
	fetchedAt time.Time
}

// Cache keeps the last assembled timetable per group and falls back to it
// when the upstream fetch fails.
type Cache struct {
	fetch Fetcher
	opts  Options
	log   logx.Logger

	mu      sync.Mutex
	entries map[string]*entry
	epoch   time.Time

	group singleflight.Group
}

func New(f Fetcher, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.HardRefresh <= 0 {
		opts.HardRefresh = DefaultHardRefresh
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Events == nil {
		opts.Events = eventbus.Nop{}
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{
		fetch:   f,
		opts:    opts,
		log:     log.Component("schedcache"),
		entries: map[string]*entry{},
		epoch:   opts.Clock.Now(),
	}
}

// Get returns the timetable for key, fetching it when the cached copy is
// missing or stale. A failed fetch falls back to the cached copy; the error
// is returned only when nothing is cached.
func (c *Cache) Get(ctx context.Context, key Key) (timetable.Timetable, error) {
	k := key.String()
	if k == "" {
		return timetable.Timetable{}, ErrInvalidKey
	}

	c.mu.Lock()
	now := c.opts.Clock.Now()
	c.advanceEpochLocked(now)
	e := c.entries[k]
	fresh := e != nil && c.freshLocked(e, now)
	c.mu.Unlock()
	if fresh {
		return e.tt, nil
	}

	tt, err := c.load(ctx, k, key)
	if err == nil {
		return tt, nil
	}

	c.mu.Lock()
	e = c.entries[k]
	c.mu.Unlock()
	if e != nil {
		c.log.Warn("fetch failed, serving stale timetable", logx.String("key", k), logx.Err(err))
		c.opts.Events.Publish(eventbus.Event{Type: eventbus.CacheStale, Data: Failure{Key: k, Err: err}})
		return e.tt, nil
	}
	c.opts.Events.Publish(eventbus.Event{Type: eventbus.CacheFailed, Data: Failure{Key: k, Err: err}})
	return timetable.Timetable{}, err
}

func (c *Cache) freshLocked(e *entry, now time.Time) bool {
	if e.fetchedAt.Before(c.epoch) {
		return false
	}
	return now.Sub(e.fetchedAt) < c.opts.TTL
}

// advanceEpochLocked starts a new epoch on the first access after the
// current one elapsed.
func (c *Cache) advanceEpochLocked(now time.Time) {
	if now.Sub(c.epoch) >= c.opts.HardRefresh {
		c.epoch = now
		c.log.Debug("hard refresh epoch advanced", logx.Time("epoch", now))
	}
}

// load fetches key once per concurrent burst and stores a successful result.
// The fetch is detached from the caller's cancellation so a departing caller
// does not fail the others sharing it.
func (c *Cache) load(ctx context.Context, k string, key Key) (timetable.Timetable, error) {
	v, err, shared := c.group.Do(k, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
		defer cancel()

		start := c.opts.Clock.Now()
		tt, err := c.fetch.FetchTimetable(fctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", k, err)
		}
		c.mu.Lock()
		c.entries[k] = &entry{key: key, tt: tt, fetchedAt: c.opts.Clock.Now()}
		c.mu.Unlock()

		c.log.Debug("timetable fetched",
			logx.String("key", k),
			logx.Int("week", tt.CurrentWeek),
			logx.Int("days", len(tt.Days)),
			logx.Duration("took", c.opts.Clock.Now().Sub(start)),
		)
		c.opts.Events.Publish(eventbus.Event{Type: eventbus.CacheRefreshed, Data: k})
		return tt, nil
	})
	if err != nil {
		return timetable.Timetable{}, err
	}
	if shared {
		c.log.Trace("fetch shared", logx.String("key", k))
	}
	return v.(timetable.Timetable), nil
}

// Invalidate drops the cached copy of key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key.String())
	c.mu.Unlock()
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Keys lists the cached groups ordered by cache key.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	names := make([]string, 0, len(c.entries))
	for k := range c.entries {
		names = append(names, k)
	}
	slices.Sort(names)
	out := make([]Key, 0, len(names))
	for _, k := range names {
		out = append(out, c.entries[k].key)
	}
	c.mu.Unlock()
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RefreshAll refetches every cached group, keeping the old copy of any group
// whose fetch fails. It returns the number refreshed and the joined errors.
func (c *Cache) RefreshAll(ctx context.Context) (int, error) {
	keys := c.Keys()
	if len(keys) == 0 {
		return 0, nil
	}
	var (
		mu sync.Mutex
		ok int
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.opts.Workers)
	for _, key := range keys {
		p.Go(func(ctx context.Context) error {
			if _, err := c.load(ctx, key.String(), key); err != nil {
				return err
			}
			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	err := p.Wait()
	c.log.Info("cache refreshed",
		logx.Int("groups", len(keys)),
		logx.Int("ok", ok),
		logx.Bool("partial", err != nil),
	)
	return ok, err
}
