// Package storage keeps per-user preferences: the chosen group and the daily
// notification settings.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: user not found")
	ErrClosed   = errors.New("storage: closed")
)

// DefaultNotifyTime is used when a user subscribes without choosing a time.
const DefaultNotifyTime = "07:00"

// Config selects a backend.
//
// Driver values:
//   - "" or "memory": process memory only
//   - "file": one JSON document, rewritten atomically on every change
//   - "sqlite": SQLite database with embedded migrations
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only
}

// User is one chat's preferences. The JSON form matches the file backend's
// document layout.
type User struct {
	ID         int64     `json:"-"`
	GroupID    string    `json:"groupId,omitempty"`
	GroupCode  string    `json:"groupCode,omitempty"`
	GroupName  string    `json:"groupName,omitempty"`
	Subscribed bool      `json:"subscribed"`
	NotifyTime string    `json:"notifyTime,omitempty"`
	LastActive time.Time `json:"lastActive"`
}

// HasGroup reports whether the user picked a group.
func (u User) HasGroup() bool { return u.GroupID != "" || u.GroupCode != "" }

// Group is the group reference saved by SetGroup.
type Group struct {
	ID   string
	Code string
	Name string
}

// Backend is the raw persistence of User records.
type Backend interface {
	Get(ctx context.Context, id int64) (User, error)
	Put(ctx context.Context, u User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
	Close() error
}
