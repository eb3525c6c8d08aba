// Package httpapi exposes the schedule over a small read-only JSON API,
// plus a token guarded cache invalidation endpoint.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"schedulebot/internal/schedcache"
	"schedulebot/internal/schedule"
	"schedulebot/internal/source"
	"schedulebot/internal/timetable"
	logx "schedulebot/pkg/logx"
)

// Config controls the optional HTTP server.
//
// A non-loopback Addr requires a Token.
type Config struct {
	Enabled      bool
	Addr         string
	Token        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Pprof mounts the runtime profiles under /debug/pprof/, behind the token.
	Pprof bool
}

type Schedules interface {
	Day(ctx context.Context, key schedcache.Key) (timetable.Day, int, error)
	Week(ctx context.Context, key schedcache.Key) (schedule.WeekSchedule, int, error)
	Now() time.Time
	Location() *time.Location
	Invalidate(key schedcache.Key)
	InvalidateAll()
}

type Groups interface {
	All(ctx context.Context) ([]source.Group, error)
	Search(ctx context.Context, query string) ([]source.Group, error)
	Lookup(ctx context.Context, idOrCode string) (source.Group, error)
}

type Server struct {
	cfg    Config
	sched  Schedules
	groups Groups
	log    logx.Logger

	mu  sync.Mutex
	srv *http.Server
}

func New(cfg Config, sched Schedules, groups Groups, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Server{cfg: cfg, sched: sched, groups: groups, log: log.Component("http")}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{key}/today", s.today).Methods(http.MethodGet)
	api.HandleFunc("/groups/{key}/week", s.week).Methods(http.MethodGet)
	api.HandleFunc("/groups/{key}/week.ics", s.weekICS).Methods(http.MethodGet)
	api.HandleFunc("/cache/invalidate", s.withAuth(s.invalidate)).Methods(http.MethodPost)

	if s.cfg.Pprof {
		dbg := r.PathPrefix("/debug/pprof").Subrouter()
		dbg.HandleFunc("/cmdline", s.withAuth(hpprof.Cmdline))
		dbg.HandleFunc("/profile", s.withAuth(hpprof.Profile))
		dbg.HandleFunc("/symbol", s.withAuth(hpprof.Symbol))
		dbg.HandleFunc("/trace", s.withAuth(hpprof.Trace))
		// Index also serves the named profiles (heap, goroutine, ...).
		dbg.PathPrefix("/").HandlerFunc(s.withAuth(hpprof.Index))
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("http: empty addr")
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("http refused to start: non-loopback addr requires token", logx.String("addr", addr))
		return errors.New("http refused to start: insecure bind")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("http started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))
	err = srv.Serve(ln)

	s.mu.Lock()
	s.srv = nil
	s.mu.Unlock()
	if ctx.Err() != nil {
		s.log.Info("http stopped")
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("http server exited unexpectedly")
	}
	return err
}

// Shutdown stops a running server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
