package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/schedule"
	"schedulebot/internal/source"
	"schedulebot/internal/timetable"
	logx "schedulebot/pkg/logx"
)

type stubSchedules struct {
	err         error
	invalidated []string
	all         bool
}

func (s *stubSchedules) Day(_ context.Context, key schedcache.Key) (timetable.Day, int, error) {
	if s.err != nil {
		return timetable.Day{}, 0, s.err
	}
	return timetable.Day{Name: "Вторник", IsToday: true, Lessons: []timetable.Lesson{{Time: "08:30-10:00", Subject: "Алгебра"}}}, 5, nil
}

func (s *stubSchedules) Week(context.Context, schedcache.Key) (schedule.WeekSchedule, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return schedule.WeekSchedule{
		{Name: "Понедельник"},
		{Name: "Вторник", Lessons: []timetable.Lesson{{Time: "08:30-10:00", Subject: "Алгебра"}}},
	}, 5, nil
}

func (s *stubSchedules) Now() time.Time           { return time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC) }
func (s *stubSchedules) Location() *time.Location { return time.UTC }
func (s *stubSchedules) Invalidate(key schedcache.Key) {
	s.invalidated = append(s.invalidated, key.String())
}
func (s *stubSchedules) InvalidateAll() { s.all = true }

type stubGroups []source.Group

func (g stubGroups) All(context.Context) ([]source.Group, error) { return g, nil }

func (g stubGroups) Search(_ context.Context, q string) ([]source.Group, error) {
	var out []source.Group
	for _, x := range g {
		if strings.Contains(strings.ToLower(x.FullName), strings.ToLower(q)) {
			out = append(out, x)
		}
	}
	return out, nil
}

func (g stubGroups) Lookup(_ context.Context, key string) (source.Group, error) {
	for _, x := range g {
		if x.ID == key || x.Code == key {
			return x, nil
		}
	}
	return source.Group{}, source.ErrGroupNotFound
}

var testGroups = stubGroups{
	{ID: "1001", Code: "1.2.3", FullName: "ПИ-21"},
	{ID: "1002", Code: "1.2.4", FullName: "ФМ-22"},
}

func newServer(token string, sched *stubSchedules) http.Handler {
	return New(Config{Addr: "127.0.0.1:0", Token: token}, sched, testGroups, logx.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	h := newServer("", &stubSchedules{})

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	rec = do(t, h, http.MethodGet, "/healthz", map[string]string{HeaderRequestID: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
}

func TestListGroups(t *testing.T) {
	h := newServer("", &stubSchedules{})

	rec := do(t, h, http.MethodGet, "/api/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all GroupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Total)

	rec = do(t, h, http.MethodGet, "/api/groups?q=фм", nil)
	var found GroupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found.Groups, 1)
	assert.Equal(t, "1002", found.Groups[0].ID)

	rec = do(t, h, http.MethodGet, "/api/groups?q=zzz", nil)
	assert.JSONEq(t, `{"groups":[],"total":0}`, rec.Body.String())
}

func TestToday(t *testing.T) {
	h := newServer("", &stubSchedules{})

	rec := do(t, h, http.MethodGet, "/api/groups/1.2.3/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ПИ-21", resp.Group)
	assert.Equal(t, 5, resp.Week)
	assert.True(t, resp.Day.IsToday)
	require.Len(t, resp.Day.Lessons, 1)
	assert.Equal(t, "Алгебра", resp.Day.Lessons[0].Subject)

	rec = do(t, h, http.MethodGet, "/api/groups/nope/today", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"group not found: nope"}`, rec.Body.String())
}

func TestWeekAndCalendar(t *testing.T) {
	h := newServer("", &stubSchedules{})

	rec := do(t, h, http.MethodGet, "/api/groups/1001/week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp WeekResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-09-01", resp.WeekStart)
	assert.Len(t, resp.Days, 2)

	rec = do(t, h, http.MethodGet, "/api/groups/1001/week.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "schedule-2025-09-01.ics")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Алгебра")
}

func TestUpstreamFailure(t *testing.T) {
	h := newServer("", &stubSchedules{err: errors.New("site down")})
	rec := do(t, h, http.MethodGet, "/api/groups/1001/week", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"schedule unavailable"}`, rec.Body.String())
}

func TestInvalidateRequiresToken(t *testing.T) {
	sched := &stubSchedules{}
	h := newServer("s3cret", sched)

	rec := do(t, h, http.MethodPost, "/api/cache/invalidate", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, sched.all)

	auth := map[string]string{"Authorization": "Bearer s3cret"}
	rec = do(t, h, http.MethodPost, "/api/cache/invalidate?key=1.2.4", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1002"}, sched.invalidated)

	rec = do(t, h, http.MethodPost, "/api/cache/invalidate", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sched.all)

	rec = do(t, h, http.MethodGet, "/api/cache/invalidate", auth)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	off := newServer("s3cret", &stubSchedules{})
	rec := do(t, off, http.MethodGet, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	on := New(Config{Addr: "127.0.0.1:0", Token: "s3cret", Pprof: true}, &stubSchedules{}, testGroups, logx.Nop()).Handler()
	rec = do(t, on, http.MethodGet, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := map[string]string{"Authorization": "Bearer s3cret"}
	rec = do(t, on, http.MethodGet, "/debug/pprof/", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")

	rec = do(t, on, http.MethodGet, "/debug/pprof/cmdline", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunRefusesInsecureBind(t *testing.T) {
	s := New(Config{Addr: "0.0.0.0:0"}, &stubSchedules{}, testGroups, logx.Nop())
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure bind")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, &stubSchedules{}, testGroups, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
