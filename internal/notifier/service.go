package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"schedulebot/internal/bot"
	"schedulebot/internal/eventbus"
	"schedulebot/internal/schedcache"
	"schedulebot/internal/storage"
	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
)

const (
	everyMinute    = "* * * * *"
	sendTimeout    = 10 * time.Second
	defaultSendGap = 100 * time.Millisecond
)

// Service runs the delivery cron.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	sched   Schedules
	users   Users
	bus     eventbus.Publisher

	cfg     Config
	parser  cron.Parser
	started bool
	base    context.Context
	c       *cron.Cron
	cancel  context.CancelFunc
}

func New(cfg Config, adapter kit.Adapter, sched Schedules, users Users, bus eventbus.Publisher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{
		log:     log.Component("notifier"),
		adapter: adapter,
		sched:   sched,
		users:   users,
		bus:     bus,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	s.cfg = withDefaults(cfg)
	return s
}

func withDefaults(cfg Config) Config {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DefaultTime == "" {
		cfg.DefaultTime = storage.DefaultNotifyTime
	}
	if cfg.SendGap <= 0 {
		cfg.SendGap = defaultSendGap
	}
	return cfg
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. After Start the cron is rebuilt so timezone,
// refresh spec and the enabled flag take effect at once.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = withDefaults(cfg)
	if !s.started {
		return nil
	}
	if s.c != nil {
		s.stopLocked()
	}
	if !s.cfg.Enabled {
		s.log.Info("notifier disabled")
		return nil
	}
	return s.startLocked()
}

// Start schedules delivery. A disabled notifier stays idle until Apply
// enables it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.base = context.WithoutCancel(ctx)
	if !s.cfg.Enabled {
		s.log.Info("notifier disabled")
		return nil
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	ctx, cancel := context.WithCancel(s.base)
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
		cron.WithLogger(cronLogger{s.log}),
	)
	if _, err := c.AddFunc(everyMinute, func() {
		_, _ = s.Tick(ctx, time.Now())
	}); err != nil {
		cancel()
		return err
	}
	if spec := s.cfg.RefreshSpec; spec != "" {
		if _, err := c.AddFunc(spec, func() { s.refresh(ctx) }); err != nil {
			cancel()
			return err
		}
	}
	c.Start()
	s.c, s.cancel = c, cancel
	s.log.Info("notifier started",
		logx.String("tz", s.cfg.Location.String()),
		logx.String("default_time", s.cfg.DefaultTime),
		logx.String("refresh", s.cfg.RefreshSpec),
	)
	return nil
}

// Stop halts the cron and waits for a running batch until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.started = false
	if s.c == nil {
		s.mu.Unlock()
		return nil
	}
	done := s.stopLocked()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.log.Info("notifier stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) stopLocked() context.Context {
	done := s.c.Stop()
	s.cancel()
	s.c, s.cancel = nil, nil
	return done
}

func (s *Service) refresh(ctx context.Context) {
	start := time.Now()
	n, err := s.sched.RefreshAll(ctx)
	if err != nil {
		s.log.Warn("scheduled refresh incomplete", logx.Int("refreshed", n), logx.Err(err))
		return
	}
	s.log.Info("scheduled refresh done", logx.Int("refreshed", n), logx.Duration("dur", time.Since(start)))
}

// Due returns the subscribers whose delivery time is slot ("HH:MM").
func (s *Service) Due(ctx context.Context, slot string) ([]storage.User, error) {
	s.mu.Lock()
	def := s.cfg.DefaultTime
	s.mu.Unlock()

	all, err := s.users.Subscribed(ctx)
	if err != nil {
		return nil, err
	}
	var due []storage.User
	for _, u := range all {
		at := u.NotifyTime
		if at == "" {
			at = def
		}
		if at == slot {
			due = append(due, u)
		}
	}
	return due, nil
}

// Tick delivers the slot that now falls into. It runs once a minute from cron
// and can be called directly.
func (s *Service) Tick(ctx context.Context, now time.Time) (Batch, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	b := Batch{Slot: now.In(cfg.Location).Format("15:04"), At: now}
	due, err := s.Due(ctx, b.Slot)
	if err != nil {
		s.log.Error("subscriber list unavailable", logx.Err(err))
		return b, err
	}
	b.Due = len(due)
	if b.Due == 0 {
		return b, nil
	}
	s.log.Info("delivering", logx.String("slot", b.Slot), logx.Int("users", b.Due))

	lim := rate.NewLimiter(rate.Every(cfg.SendGap), 1)
	for _, u := range due {
		if err := lim.Wait(ctx); err != nil {
			return b, err
		}
		switch err := s.deliver(ctx, u); {
		case err == nil:
			b.Sent++
		case errors.Is(err, kit.ErrRecipientGone):
			b.Gone++
			if _, uerr := s.users.Unsubscribe(ctx, u.ID); uerr != nil {
				s.log.Warn("unsubscribe failed", logx.Int64("chat_id", u.ID), logx.Err(uerr))
			} else {
				s.log.Info("chat unavailable, unsubscribed", logx.Int64("chat_id", u.ID))
			}
		default:
			b.Failed++
			s.log.Warn("delivery failed", logx.Int64("chat_id", u.ID), logx.Err(err))
		}
	}

	s.log.Info("delivery done",
		logx.String("slot", b.Slot),
		logx.Int("sent", b.Sent),
		logx.Int("failed", b.Failed),
		logx.Int("gone", b.Gone),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.NotifyBatch, Time: now, Data: b})
	return b, nil
}

func (s *Service) deliver(ctx context.Context, u storage.User) error {
	key := schedcache.Key{ID: u.GroupID, Code: u.GroupCode}
	day, week, err := s.sched.Day(ctx, key)
	if err != nil {
		return err
	}
	group := u.GroupName
	if group == "" {
		group = key.String()
	}
	cctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err = s.adapter.SendText(cctx, kit.ChatTarget{ChatID: u.ID}, bot.FormatToday(day, week, group).String(), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// cronLogger routes cron's own messages into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
