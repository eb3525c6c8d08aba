package broadcast

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"schedulebot/internal/eventbus"
	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
)

const (
	defaultWorkers = 2
	defaultRate    = 10
	queueSize      = 64
	statusMax      = 200
	statusTTL      = 24 * time.Hour
	failuresMax    = 200
)

type Service struct {
	mu sync.Mutex

	cfg     Config
	adapter kit.Adapter
	users   Users
	bus     eventbus.Publisher
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan job
	stopCh  chan struct{}
	// stopDone is non-nil while Stop waits for the workers.
	stopDone  chan struct{}
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	seq      atomic.Uint64
	statusMu sync.RWMutex
	status   map[string]*JobStatus
	now      func() time.Time
}

func New(cfg Config, adapter kit.Adapter, users Users, bus eventbus.Publisher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	cfg = withDefaults(cfg)
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		users:   users,
		bus:     bus,
		log:     log.Component("broadcast"),
		limiter: newLimiter(cfg),
		queue:   make(chan job, queueSize),
		status:  map[string]*JobStatus{},
		now:     time.Now,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRate
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return cfg
}

func newLimiter(cfg Config) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
}

// Apply swaps rate and retry settings. The worker count changes on the next
// Start.
func (s *Service) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.limiter = newLimiter(cfg)
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil && s.stopDone == nil
}

// Start launches the workers. Queued jobs survive a Stop/Start cycle.
func (s *Service) Start(ctx context.Context) error {
	// Wait out a Stop in progress so two pools never overlap.
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	workers := s.cfg.Workers
	stopCh := s.stopCh

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in broadcast worker", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, idx)
		}()
	}
	s.log.Info("broadcast started", logx.Int("workers", workers), logx.Int("rps", s.cfg.RatePerSec))
	return nil
}

// Stop signals the workers and waits for them until ctx is done. A job cut
// short keeps its partial counts.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh, cancel := s.stopCh, s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("broadcast stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues text for every target and returns the job id.
func (s *Service) Submit(name string, targets []kit.ChatTarget, text string, opt *kit.SendOptions) (string, error) {
	if len(targets) == 0 {
		return "", ErrNoTargets
	}
	if !s.Running() {
		return "", ErrNotRunning
	}
	now := s.now()
	id := strconv.FormatUint(s.seq.Add(1), 10)
	s.pruneStatus(now)

	s.statusMu.Lock()
	s.status[id] = &JobStatus{ID: id, Name: name, Total: len(targets), CreatedAt: now}
	s.statusMu.Unlock()

	select {
	case s.queue <- job{id: id, name: name, targets: targets, text: text, opt: opt}:
		s.log.Debug("broadcast job enqueued", logx.String("job", id), logx.Int("total", len(targets)), logx.Int("queue_len", len(s.queue)))
		return id, nil
	default:
		s.statusMu.Lock()
		delete(s.status, id)
		s.statusMu.Unlock()
		s.log.Warn("broadcast queue full; job rejected", logx.String("name", name), logx.Int("queue_cap", cap(s.queue)))
		return "", ErrQueueFull
	}
}

// Status returns a copy of the job's progress.
func (s *Service) Status(id string) (JobStatus, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st, ok := s.status[id]
	if !ok {
		return JobStatus{}, false
	}
	cp := *st
	cp.Failures = append([]kit.ChatTarget(nil), st.Failures...)
	return cp, true
}

// pruneStatus drops finished entries past statusTTL, then the oldest
// finished ones while the map is over statusMax.
func (s *Service) pruneStatus(now time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	for id, st := range s.status {
		if st.Finished() && now.Sub(st.DoneAt) > statusTTL {
			delete(s.status, id)
		}
	}
	for len(s.status) > statusMax {
		oldest := ""
		for id, st := range s.status {
			if !st.Finished() {
				continue
			}
			if oldest == "" || st.DoneAt.Before(s.status[oldest].DoneAt) {
				oldest = id
			}
		}
		if oldest == "" {
			return
		}
		delete(s.status, oldest)
	}
}
