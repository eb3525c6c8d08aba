package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	logx "schedulebot/pkg/logx"
)

// Open initializes the configured backend. An empty driver keeps users in
// memory.
func Open(cfg Config, log logx.Logger) (*Users, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.Component("storage")

	var (
		b   Backend
		err error
	)
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		b = newMemory()
	case "file":
		b, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		b, err = openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info("user store opened", logx.String("driver", orMemory(driver)), logx.String("path", cfg.Path))
	return NewUsers(b), nil
}

func orMemory(driver string) string {
	if driver == "" {
		return "memory"
	}
	return driver
}

// Users implements the preference operations on top of a Backend.
// Read-modify-write sequences are serialized.
type Users struct {
	b   Backend
	now func() time.Time
	mu  sync.Mutex
}

func NewUsers(b Backend) *Users {
	return &Users{b: b, now: time.Now}
}

func (s *Users) Get(ctx context.Context, id int64) (User, error) {
	return s.b.Get(ctx, id)
}

// Put stores u and stamps LastActive.
func (s *Users) Put(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.LastActive = s.now()
	return s.b.Put(ctx, u)
}

// Touch records activity, creating the user if needed.
func (s *Users) Touch(ctx context.Context, id int64) (User, error) {
	return s.update(ctx, id, func(*User) {})
}

func (s *Users) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Delete(ctx, id)
}

func (s *Users) SetGroup(ctx context.Context, id int64, g Group) (User, error) {
	return s.update(ctx, id, func(u *User) {
		u.GroupID, u.GroupCode, u.GroupName = g.ID, g.Code, g.Name
	})
}

// Subscribe enables daily delivery at notifyTime, DefaultNotifyTime when empty.
func (s *Users) Subscribe(ctx context.Context, id int64, notifyTime string) (User, error) {
	if notifyTime == "" {
		notifyTime = DefaultNotifyTime
	}
	return s.update(ctx, id, func(u *User) {
		u.Subscribed = true
		u.NotifyTime = notifyTime
	})
}

func (s *Users) Unsubscribe(ctx context.Context, id int64) (User, error) {
	return s.update(ctx, id, func(u *User) { u.Subscribed = false })
}

func (s *Users) SetNotifyTime(ctx context.Context, id int64, notifyTime string) (User, error) {
	return s.update(ctx, id, func(u *User) { u.NotifyTime = notifyTime })
}

func (s *Users) update(ctx context.Context, id int64, fn func(*User)) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.b.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		u, err = User{ID: id}, nil
	}
	if err != nil {
		return User{}, err
	}
	fn(&u)
	u.LastActive = s.now()
	if err := s.b.Put(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// All lists every stored user by id.
func (s *Users) All(ctx context.Context) ([]User, error) {
	all, err := s.b.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(all, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return all, nil
}

// Subscribed lists users with delivery enabled and a group chosen, by id.
func (s *Users) Subscribed(ctx context.Context) ([]User, error) {
	all, err := s.b.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, u := range all {
		if u.Subscribed && u.HasGroup() {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Groups returns the distinct groups chosen by users.
func (s *Users) Groups(ctx context.Context) ([]Group, error) {
	all, err := s.b.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []Group
	for _, u := range all {
		if !u.HasGroup() {
			continue
		}
		k := u.GroupID + "|" + u.GroupCode
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Group{ID: u.GroupID, Code: u.GroupCode, Name: u.GroupName})
	}
	slices.SortFunc(out, func(a, b Group) int { return strings.Compare(a.ID+a.Code, b.ID+b.Code) })
	return out, nil
}

func (s *Users) Count(ctx context.Context) (int, error) {
	all, err := s.b.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Users) Close() error { return s.b.Close() }
