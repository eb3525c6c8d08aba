package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"schedulebot/internal/eventbus"
	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
)

const (
	sendTimeout = 10 * time.Second
	retryDelay  = 200 * time.Millisecond
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, idx int) {
	s.log.Debug("worker started", logx.Int("worker", idx))
	defer s.log.Debug("worker stopped", logx.Int("worker", idx))
	for {
		// Stop wins over queued work.
		select {
		case <-stopCh:
			return
		default:
		}
		select {
		case <-stopCh:
			return
		case j := <-s.queue:
			s.execJob(ctx, j)
		}
	}
}

func (s *Service) execJob(ctx context.Context, j job) {
	start := time.Now()
	s.update(j.id, func(st *JobStatus) {
		st.StartedAt = s.now()
		st.Running = true
	})
	s.log.Info("broadcast job started", logx.String("job", j.id), logx.String("name", j.name), logx.Int("total", len(j.targets)))

	for _, t := range j.targets {
		if ctx.Err() != nil {
			break
		}
		err := s.sendOne(ctx, j, t)
		gone := errors.Is(err, kit.ErrRecipientGone)
		if gone && s.users != nil {
			if _, uerr := s.users.Unsubscribe(ctx, t.ChatID); uerr != nil {
				s.log.Debug("unsubscribe failed", logx.Int64("chat_id", t.ChatID), logx.Err(uerr))
			}
		}
		s.update(j.id, func(st *JobStatus) {
			st.Done++
			if err == nil {
				return
			}
			st.Failed++
			if gone {
				st.Gone++
			}
			if len(st.Failures) < failuresMax {
				st.Failures = append(st.Failures, t)
			}
		})
	}

	s.update(j.id, func(st *JobStatus) {
		st.DoneAt = s.now()
		st.Running = false
	})
	st, _ := s.Status(j.id)
	fields := []logx.Field{
		logx.String("job", j.id),
		logx.String("name", j.name),
		logx.Int("total", st.Total),
		logx.Int("done", st.Done),
		logx.Int("failed", st.Failed),
		logx.Int("gone", st.Gone),
		logx.Duration("dur", time.Since(start)),
	}
	if st.Failed > st.Gone {
		s.log.Warn("broadcast job finished with failures", fields...)
	} else {
		s.log.Info("broadcast job finished", fields...)
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.BroadcastDone, Data: st})
}

func (s *Service) sendOne(ctx context.Context, j job, t kit.ChatTarget) error {
	s.mu.Lock()
	lim, attempts := s.limiter, s.cfg.RetryMax+1
	s.mu.Unlock()

	return retry.Do(
		func() error {
			if err := lim.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			cctx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			_, err := s.adapter.SendText(cctx, t, j.text, j.opt)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, kit.ErrRecipientGone)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("broadcast send retry", logx.String("job", j.id), logx.Int64("chat_id", t.ChatID), logx.Int("attempt", int(n)+2), logx.Err(err))
		}),
	)
}

func (s *Service) update(id string, fn func(*JobStatus)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st := s.status[id]; st != nil {
		fn(st)
	}
}
