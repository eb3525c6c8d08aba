package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"schedulebot/internal/eventbus"
	"schedulebot/internal/schedcache"
	"schedulebot/internal/storage"
	"schedulebot/internal/timetable"
	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
)

var nsk = time.FixedZone("NOVT", 7*3600)

type fakeAdapter struct {
	mu      sync.Mutex
	sent    map[int64]string
	blocked map[int64]bool
	broken  map[int64]bool
}

func newAdapter() *fakeAdapter {
	return &fakeAdapter{sent: map[int64]string{}, blocked: map[int64]bool{}, broken: map[int64]bool{}}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.blocked[to.ChatID]:
		return kit.MessageRef{}, kit.ErrRecipientGone
	case f.broken[to.ChatID]:
		return kit.MessageRef{}, errors.New("telegram: bad gateway")
	}
	f.sent[to.ChatID] = text
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) SendDocument(context.Context, kit.ChatTarget, kit.Document, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

type fakeSchedules struct {
	mu       sync.Mutex
	days     int
	refreshs int
}

func (f *fakeSchedules) Day(_ context.Context, key schedcache.Key) (timetable.Day, int, error) {
	f.mu.Lock()
	f.days++
	f.mu.Unlock()
	return timetable.Day{Name: "Вторник", Lessons: []timetable.Lesson{{Time: "08:30", Subject: "Физика " + key.String()}}}, 4, nil
}

func (f *fakeSchedules) RefreshAll(context.Context) (int, error) {
	f.mu.Lock()
	f.refreshs++
	f.mu.Unlock()
	return 3, nil
}

func seed(t *testing.T, users ...storage.User) *storage.Users {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	for _, u := range users {
		if err := st.Put(context.Background(), u); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	return st
}

func TestTickDeliversDueUsers(t *testing.T) {
	t.Parallel()
	st := seed(t,
		storage.User{ID: 1, GroupID: "10", GroupName: "ПИ-21", Subscribed: true, NotifyTime: "07:00"},
		storage.User{ID: 2, GroupID: "11", Subscribed: true}, // default time
		storage.User{ID: 3, GroupID: "12", Subscribed: true, NotifyTime: "08:00"},
		storage.User{ID: 4, GroupID: "13", Subscribed: false, NotifyTime: "07:00"},
		storage.User{ID: 5, Subscribed: true, NotifyTime: "07:00"}, // no group
	)
	fa := newAdapter()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := New(Config{Enabled: true, Location: nsk, SendGap: time.Millisecond}, fa, &fakeSchedules{}, st, bus, logx.Nop())
	// 00:00 UTC is 07:00 in Novosibirsk.
	now := time.Date(2025, 9, 2, 0, 0, 30, 0, time.UTC)
	b, err := s.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if b.Slot != "07:00" || b.Due != 2 || b.Sent != 2 || b.Failed != 0 || b.Gone != 0 {
		t.Fatalf("batch = %+v", b)
	}
	if len(fa.sent) != 2 {
		t.Fatalf("sent to %d chats, want 2", len(fa.sent))
	}
	if got := fa.sent[1]; !strings.Contains(got, "Расписание на сегодня") || !strings.Contains(got, "ПИ-21") {
		t.Fatalf("message = %q", got)
	}
	if got := fa.sent[2]; !strings.Contains(got, "<b>Группа:</b> 11") {
		t.Fatalf("fallback group name = %q", got)
	}

	select {
	case e := <-events:
		if e.Type != eventbus.NotifyBatch || e.Data.(Batch).Sent != 2 {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatal("no batch event")
	}
}

func TestTickUnsubscribesGoneChats(t *testing.T) {
	t.Parallel()
	st := seed(t,
		storage.User{ID: 1, GroupID: "10", Subscribed: true, NotifyTime: "09:15"},
		storage.User{ID: 2, GroupID: "10", Subscribed: true, NotifyTime: "09:15"},
		storage.User{ID: 3, GroupID: "10", Subscribed: true, NotifyTime: "09:15"},
	)
	fa := newAdapter()
	fa.blocked[2] = true
	fa.broken[3] = true
	s := New(Config{Enabled: true, Location: time.UTC, SendGap: time.Millisecond}, fa, &fakeSchedules{}, st, nil, logx.Nop())

	b, err := s.Tick(context.Background(), time.Date(2025, 9, 2, 9, 15, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if b.Sent != 1 || b.Gone != 1 || b.Failed != 1 {
		t.Fatalf("batch = %+v", b)
	}
	u, err := st.Get(context.Background(), 2)
	if err != nil || u.Subscribed {
		t.Fatalf("blocked user = %+v, %v", u, err)
	}
	u, _ = st.Get(context.Background(), 3)
	if !u.Subscribed {
		t.Fatal("transient failure unsubscribed the user")
	}
}

func TestTickNothingDue(t *testing.T) {
	t.Parallel()
	st := seed(t, storage.User{ID: 1, GroupID: "10", Subscribed: true, NotifyTime: "07:00"})
	sched := &fakeSchedules{}
	s := New(Config{Enabled: true, Location: time.UTC}, newAdapter(), sched, st, nil, logx.Nop())
	b, err := s.Tick(context.Background(), time.Date(2025, 9, 2, 7, 1, 0, 0, time.UTC))
	if err != nil || b.Due != 0 {
		t.Fatalf("Tick = %+v, %v", b, err)
	}
	if sched.days != 0 {
		t.Fatalf("schedule fetched %d times with nobody due", sched.days)
	}
}

func TestTickPacesSends(t *testing.T) {
	t.Parallel()
	var users []storage.User
	for i := int64(1); i <= 4; i++ {
		users = append(users, storage.User{ID: i, GroupID: "10", Subscribed: true, NotifyTime: "07:00"})
	}
	st := seed(t, users...)
	s := New(Config{Enabled: true, Location: time.UTC, SendGap: 20 * time.Millisecond}, newAdapter(), &fakeSchedules{}, st, nil, logx.Nop())

	start := time.Now()
	if _, err := s.Tick(context.Background(), time.Date(2025, 9, 2, 7, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	// The first send is immediate, the other three wait one gap each.
	if d := time.Since(start); d < 55*time.Millisecond {
		t.Fatalf("batch took %v, want at least 3 gaps", d)
	}
}

func TestStartStopApply(t *testing.T) {
	t.Parallel()
	st := seed(t)
	s := New(Config{Enabled: false, Location: time.UTC}, newAdapter(), &fakeSchedules{}, st, nil, logx.Nop())
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.c != nil {
		t.Fatal("disabled notifier scheduled a cron")
	}
	if err := s.Apply(Config{Enabled: true, Location: nsk, RefreshSpec: "0 5 * * *"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.c == nil || len(s.c.Entries()) != 2 {
		t.Fatal("Apply did not start the cron with both entries")
	}
	if err := s.Apply(Config{Enabled: true, Location: nsk, RefreshSpec: "bogus"}); err == nil {
		t.Fatal("Apply accepted a bad refresh spec")
	}
	if err := s.Apply(Config{Enabled: true, Location: nsk}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.c != nil {
		t.Fatal("cron still set after Stop")
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestRefreshJob(t *testing.T) {
	t.Parallel()
	sched := &fakeSchedules{}
	s := New(Config{}, newAdapter(), sched, seed(t), nil, logx.Nop())
	s.refresh(context.Background())
	if sched.refreshs != 1 {
		t.Fatalf("RefreshAll calls = %d, want 1", sched.refreshs)
	}
}
