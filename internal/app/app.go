// Package app wires the configured components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schedulebot/internal/bot"
	"schedulebot/internal/config"
	"schedulebot/internal/eventbus"
	"schedulebot/internal/httpapi"
	"schedulebot/internal/notifier"
	"schedulebot/internal/notifier/broadcast"
	rtsup "schedulebot/internal/runtime/supervisor"
	"schedulebot/internal/schedcache"
	"schedulebot/internal/schedule"
	"schedulebot/internal/source"
	"schedulebot/internal/storage"
	kit "schedulebot/internal/transport"
	telegram "schedulebot/internal/transport/telegram/adapter"
	"schedulebot/internal/transport/telegram/router"
	logx "schedulebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	users   *storage.Users
	adapter kit.Adapter
	router  *router.Router
	sched   *schedule.Service
	notif   *notifier.Service
	bcast   *broadcast.Service // nil when disabled
	http    *httpapi.Server

	updates chan kit.Update
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, err
	}
	res, err := config.Validate(cfg)
	if err != nil {
		return nil, err
	}
	cfgm.Commit(cfg)

	// The adapter logs through the service, so the Telegram sink gets its
	// sender after the adapter exists.
	logSvc, root := logx.New(logConfig(cfg), nil)
	log := root.Component("app")

	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: res.PollTimeout,
		APIURL:      cfg.Telegram.APIURL,
	}, root.Component("telegram"))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(ad)

	bus := eventbus.New()

	users, err := storage.Open(storageConfig(res), root.Component("storage"))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", orDefault(cfg.Storage.Driver, "memory")))

	client := source.New(sourceOptions(res, root.Component("source")))
	groups := source.NewDirectory(client, cfg.Source.Departments, res.GroupsTTL, root)

	copts := cacheOptions(res)
	copts.Log = root
	copts.Events = bus
	cache := schedcache.New(client, copts)
	sched := schedule.New(cache, nil, res.Location)
	weeks := source.NewWeeks(client, res.WeeksTTL, sched.Now, root)

	var bcast *broadcast.Service
	deps := bot.Deps{
		Schedules:   sched,
		Groups:      groups,
		Weeks:       weeks,
		Users:       users,
		TZLabel:     tzLabel(res.Location),
		DefaultTime: res.DefaultTime,
		Log:         root,
	}
	if cfg.Broadcast.Enabled {
		bcast = broadcast.New(broadcastConfig(res), ad, users, bus, root)
		deps.Announcer = bcast
	}

	r := router.New(root.Component("telegram.router"), ad)
	r.SetOwners(cfg.Telegram.OwnerUserIDs)
	r.SetHandlerTimeout(res.HandlerTimeout)
	bot.New(deps).Register(r)

	notif := notifier.New(notifierConfig(res), ad, sched, users, bus, root)

	var srv *httpapi.Server
	if cfg.HTTP.Enabled {
		srv = httpapi.New(httpConfig(res), sched, groups, root)
	}

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		users:   users,
		adapter: ad,
		router:  r,
		sched:   sched,
		notif:   notif,
		bcast:   bcast,
		http:    srv,
		updates: make(chan kit.Update, 256),
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// tzLabel names the delivery timezone for users.
func tzLabel(loc *time.Location) string {
	if loc == nil {
		return bot.DefaultTZLabel
	}
	if loc.String() == config.DefaultTimezone {
		return bot.DefaultTZLabel
	}
	_, off := time.Now().In(loc).Zone()
	return fmt.Sprintf("%s (UTC%+d)", loc.String(), off/3600)
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.Component("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Validate(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.router.PublishMenu(a.sup.Context()); err != nil {
		a.log.Warn("command menu not published", logx.Err(err))
	}
	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if err := a.notif.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.bcast != nil {
		if err := a.bcast.Start(a.sup.Context()); err != nil {
			return err
		}
	}
	if a.http != nil {
		a.sup.Go("http", a.http.Run)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(cfg)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

func (a *App) logEvent(e eventbus.Event) {
	switch e.Type {
	case eventbus.CacheFailed:
		a.log.Warn("event", logx.String("type", e.Type), logx.Any("data", e.Data))
	case eventbus.BroadcastDone:
		a.log.Info("event", logx.String("type", e.Type), logx.Any("data", e.Data))
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

// apply hot-reloads what can change at runtime. The config was validated by
// the manager before it was published.
func (a *App) apply(cfg *config.Config) {
	res, err := config.Validate(cfg)
	if err != nil {
		a.log.Warn("reloaded config invalid; keeping previous", logx.Err(err))
		return
	}
	a.logs.Apply(logConfig(cfg))
	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.router.SetHandlerTimeout(res.HandlerTimeout)
	if err := a.notif.Apply(notifierConfig(res)); err != nil {
		a.log.Warn("notifier config rejected", logx.Err(err))
	}
	if a.bcast != nil {
		a.bcast.Apply(broadcastConfig(res))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: a.cfgm.Path()})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Each step is bounded so one component cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("notifier", 3*time.Second, a.notif.Stop)
	step("broadcast", 3*time.Second, func(c context.Context) error {
		if a.bcast == nil {
			return nil
		}
		return a.bcast.Stop(c)
	})
	step("http", 2*time.Second, func(c context.Context) error {
		if a.http == nil {
			return nil
		}
		return a.http.Shutdown(c)
	})
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.users.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
