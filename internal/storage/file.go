package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	logx "schedulebot/pkg/logx"
)

// fileBackend keeps every user in memory and rewrites the whole document
// on change:
//
//	{"users": {"<chat id>": {"groupId": "...", "subscribed": true, ...}}}
type fileBackend struct {
	path string
	log  logx.Logger

	mu     sync.Mutex
	users  map[int64]User
	closed bool
}

type fileDoc struct {
	Users map[string]User `json:"users"`
}

func openFile(cfg Config, log logx.Logger) (*fileBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	b := &fileBackend{path: path, log: log, users: map[int64]User{}}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *fileBackend) load() error {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("storage: decode %s: %w", b.path, err)
	}
	for k, u := range doc.Users {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			b.log.Warn("skipping user with bad id", logx.String("id", k))
			continue
		}
		u.ID = id
		b.users[id] = u
	}
	return nil
}

// saveLocked writes the document to a temp file and renames it into place.
func (b *fileBackend) saveLocked() error {
	doc := fileDoc{Users: make(map[string]User, len(b.users))}
	for id, u := range b.users {
		doc.Users[strconv.FormatInt(id, 10)] = u
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

func (b *fileBackend) Get(_ context.Context, id int64) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (b *fileBackend) Put(_ context.Context, u User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	prev, had := b.users[u.ID]
	b.users[u.ID] = u
	if err := b.saveLocked(); err != nil {
		if had {
			b.users[u.ID] = prev
		} else {
			delete(b.users, u.ID)
		}
		return err
	}
	return nil
}

func (b *fileBackend) Delete(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, ok := b.users[id]; !ok {
		return nil
	}
	delete(b.users, id)
	return b.saveLocked()
}

func (b *fileBackend) List(_ context.Context) ([]User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]User, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, u)
	}
	return out, nil
}

func (b *fileBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
