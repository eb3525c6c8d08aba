package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	DefaultBaseURL   = "https://schedule.nspu.ru"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultTimezone  = "Asia/Novosibirsk"
	DefaultNotify    = "07:00"
	DefaultHTTPAddr  = "127.0.0.1:8085"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock validates an HH:MM wall clock time and returns it zero padded.
func ParseClock(s string) (string, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return "", fmt.Errorf("invalid time %q, out of range", s)
	}
	return fmt.Sprintf("%02d:%02d", h, mm), nil
}

// Resolved is Config with defaults applied and durations parsed.
type Resolved struct {
	Raw *Config

	PollTimeout    time.Duration
	HandlerTimeout time.Duration

	SourceTimeout    time.Duration
	SourceRetryDelay time.Duration
	GroupsTTL        time.Duration
	WeeksTTL         time.Duration

	CacheTTL       time.Duration
	HardRefresh    time.Duration
	FetchTimeout   time.Duration
	RefreshWorkers int

	Location    *time.Location
	DefaultTime string
	SendGap     time.Duration

	StorageBusyTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
}

// Validate fills defaults into cfg and checks every section. All problems are
// reported together.
func Validate(cfg *Config) (Resolved, error) {
	var r Resolved
	if cfg == nil {
		return r, errors.New("config is nil")
	}
	r.Raw = cfg
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := parseDuration(path, raw, def)
		check(err)
		return d
	}

	tg := &cfg.Telegram
	if strings.TrimSpace(tg.Token) == "" {
		check(fmt.Errorf("telegram.token is required (or set %s)", EnvToken))
	}
	r.PollTimeout = dur("telegram.poll_timeout", tg.PollTimeout, 10*time.Second)
	r.HandlerTimeout = dur("telegram.handler_timeout", tg.HandlerTimeout, 30*time.Second)

	src := &cfg.Source
	if src.BaseURL == "" {
		src.BaseURL = DefaultBaseURL
	}
	if u, err := url.Parse(src.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		check(fmt.Errorf("source.base_url: invalid url %q", src.BaseURL))
	}
	src.BaseURL = strings.TrimRight(src.BaseURL, "/")
	if src.UserAgent == "" {
		src.UserAgent = DefaultUserAgent
	}
	if src.Retries <= 0 {
		src.Retries = 3
	}
	if src.RatePerSec < 0 {
		check(errors.New("source.rate_per_sec must be >= 0"))
	}
	if len(src.Departments) == 0 {
		src.Departments = []int{8}
	}
	r.SourceTimeout = dur("source.timeout", src.Timeout, 10*time.Second)
	r.SourceRetryDelay = dur("source.retry_delay", src.RetryDelay, time.Second)
	r.GroupsTTL = dur("source.groups_ttl", src.GroupsTTL, 24*time.Hour)
	r.WeeksTTL = dur("source.weeks_ttl", src.WeeksTTL, time.Hour)

	c := &cfg.Cache
	r.CacheTTL = dur("cache.ttl", c.TTL, 30*time.Minute)
	r.HardRefresh = dur("cache.hard_refresh", c.HardRefresh, 12*time.Hour)
	r.FetchTimeout = dur("cache.fetch_timeout", c.FetchTimeout, 10*time.Second)
	if r.HardRefresh < r.CacheTTL {
		check(errors.New("cache.hard_refresh must be >= cache.ttl"))
	}
	r.RefreshWorkers = c.RefreshWorkers
	if r.RefreshWorkers <= 0 {
		r.RefreshWorkers = 4
	}

	n := &cfg.Notifier
	if n.Timezone == "" {
		n.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		check(fmt.Errorf("notifier.timezone: %w", err))
		loc = time.UTC
	}
	r.Location = loc
	if n.DefaultTime == "" {
		n.DefaultTime = DefaultNotify
	}
	if t, err := ParseClock(n.DefaultTime); err != nil {
		check(fmt.Errorf("notifier.default_time: %w", err))
	} else {
		r.DefaultTime = t
	}
	r.SendGap = dur("notifier.send_gap", n.SendGap, 100*time.Millisecond)
	if n.RefreshSpec != "" {
		if _, err := cron.ParseStandard(n.RefreshSpec); err != nil {
			check(fmt.Errorf("notifier.refresh_spec: %w", err))
		}
	}

	if b := cfg.Broadcast; b.Workers < 0 || b.RatePerSec < 0 || b.RetryMax < 0 {
		check(errors.New("broadcast: workers, rate_per_sec and retry_max must be >= 0"))
	}

	st := &cfg.Storage
	switch st.Driver {
	case "", "memory":
	case "file", "sqlite":
		if strings.TrimSpace(st.Path) == "" {
			check(fmt.Errorf("storage.path is required for driver %q", st.Driver))
		}
	default:
		check(fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
	}
	r.StorageBusyTimeout = dur("storage.busy_timeout", st.BusyTimeout, 5*time.Second)

	h := &cfg.HTTP
	if h.Enabled && h.Addr == "" {
		h.Addr = DefaultHTTPAddr
	}
	r.HTTPReadTimeout = dur("http.read_timeout", h.ReadTimeout, 10*time.Second)
	r.HTTPWriteTimeout = dur("http.write_timeout", h.WriteTimeout, 30*time.Second)

	return r, errors.Join(errs...)
}
