package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	logx "schedulebot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteBackend struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	b := &sqliteBackend{db: db, log: log}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqliteBackend) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, b.db, sub, goose.WithLogger(gooseLogger{b.log}))
	if err != nil {
		return fmt.Errorf("storage: migrations: %w", err)
	}
	res, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("storage: migrate up: %w", err)
	}
	for _, r := range res {
		b.log.Info("migration applied", logx.Int64("version", r.Source.Version), logx.Duration("took", r.Duration))
	}
	return nil
}

type gooseLogger struct{ log logx.Logger }

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

const userColumns = `id, group_id, group_code, group_name, subscribed, notify_time, last_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (User, error) {
	var (
		u          User
		subscribed int
		lastActive string
	)
	if err := r.Scan(&u.ID, &u.GroupID, &u.GroupCode, &u.GroupName, &subscribed, &u.NotifyTime, &lastActive); err != nil {
		return User{}, err
	}
	u.Subscribed = subscribed != 0
	if lastActive != "" {
		u.LastActive, _ = time.Parse(time.RFC3339Nano, lastActive)
	}
	return u, nil
}

func (b *sqliteBackend) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(b.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (b *sqliteBackend) Put(ctx context.Context, u User) error {
	subscribed := 0
	if u.Subscribed {
		subscribed = 1
	}
	var lastActive string
	if !u.LastActive.IsZero() {
		lastActive = u.LastActive.UTC().Format(time.RFC3339Nano)
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   group_id=excluded.group_id, group_code=excluded.group_code, group_name=excluded.group_name,
		   subscribed=excluded.subscribed, notify_time=excluded.notify_time, last_active=excluded.last_active`,
		u.ID, u.GroupID, u.GroupCode, u.GroupName, subscribed, u.NotifyTime, lastActive,
	)
	return err
}

func (b *sqliteBackend) Delete(ctx context.Context, id int64) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (b *sqliteBackend) List(ctx context.Context) ([]User, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
