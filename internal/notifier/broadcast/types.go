// Package broadcast delivers one announcement to many chats on a small
// rate-limited worker pool. Owners start jobs from the bot and poll their
// status by id.
package broadcast

import (
	"context"
	"errors"
	"time"

	"schedulebot/internal/storage"
	kit "schedulebot/internal/transport"
)

var (
	ErrNotRunning = errors.New("broadcast: not running")
	ErrQueueFull  = errors.New("broadcast: queue full")
	ErrNoTargets  = errors.New("broadcast: no recipients")
)

type Config struct {
	Workers    int
	RatePerSec int
	RetryMax   int
}

// Users is told about chats that blocked the bot.
type Users interface {
	Unsubscribe(ctx context.Context, id int64) (storage.User, error)
}

type job struct {
	id      string
	name    string
	targets []kit.ChatTarget
	text    string
	opt     *kit.SendOptions
}

// JobStatus is a snapshot of one job. Gone counts chats that no longer
// accept messages; they are also counted in Failed.
type JobStatus struct {
	ID        string
	Name      string
	Total     int
	Done      int
	Failed    int
	Gone      int
	Failures  []kit.ChatTarget
	CreatedAt time.Time
	StartedAt time.Time
	DoneAt    time.Time
	Running   bool
}

// Finished reports whether every target was attempted.
func (s JobStatus) Finished() bool { return !s.DoneAt.IsZero() }
