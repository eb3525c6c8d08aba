package notifier

import (
	"context"
	"time"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/storage"
	"schedulebot/internal/timetable"
)

// Config controls delivery.
type Config struct {
	Enabled bool
	// Location is the timezone delivery times are expressed in.
	Location *time.Location
	// DefaultTime applies to subscribers without a stored time.
	DefaultTime string
	// SendGap is the minimum pause between two messages.
	SendGap time.Duration
	// RefreshSpec is a cron spec for a full cache refresh. Empty disables it.
	RefreshSpec string
}

// Schedules is the slice of the schedule service the notifier needs.
type Schedules interface {
	Day(ctx context.Context, key schedcache.Key) (timetable.Day, int, error)
	RefreshAll(ctx context.Context) (int, error)
}

// Users is the subscriber store.
type Users interface {
	Subscribed(ctx context.Context) ([]storage.User, error)
	Unsubscribe(ctx context.Context, id int64) (storage.User, error)
}

// Batch summarises one delivery slot. It is published as the Data of a
// notifier.batch event.
type Batch struct {
	Slot   string    `json:"slot"`
	At     time.Time `json:"at"`
	Due    int       `json:"due"`
	Sent   int       `json:"sent"`
	Failed int       `json:"failed"`
	Gone   int       `json:"gone"`
}
