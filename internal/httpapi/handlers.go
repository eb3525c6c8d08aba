package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"schedulebot/internal/export"
	"schedulebot/internal/schedule"
	"schedulebot/internal/source"
	"schedulebot/internal/timetable"
	logx "schedulebot/pkg/logx"
)

type DayResponse struct {
	Group string        `json:"group"`
	Week  int           `json:"week"`
	Day   timetable.Day `json:"day"`
}

type WeekResponse struct {
	Group     string          `json:"group"`
	Week      int             `json:"week"`
	WeekStart string          `json:"week_start"`
	Days      []timetable.Day `json:"days"`
}

type GroupsResponse struct {
	Groups []source.Group `json:"groups"`
	Total  int            `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	var (
		groups []source.Group
		err    error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		groups, err = s.groups.Search(r.Context(), q)
	} else {
		groups, err = s.groups.All(r.Context())
	}
	if err != nil {
		s.log.Warn("group list failed", logx.String("rid", RequestID(r.Context())), logx.Err(err))
		writeError(w, http.StatusBadGateway, "group list unavailable")
		return
	}
	if groups == nil {
		groups = []source.Group{}
	}
	writeJSON(w, http.StatusOK, GroupsResponse{Groups: groups, Total: len(groups)})
}

// group resolves the {key} path variable. It writes the error response
// itself and reports false on failure.
func (s *Server) group(w http.ResponseWriter, r *http.Request) (source.Group, bool) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	g, err := s.groups.Lookup(r.Context(), key)
	switch {
	case errors.Is(err, source.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "group not found: "+key)
		return g, false
	case err != nil:
		s.log.Warn("group lookup failed", logx.String("rid", RequestID(r.Context())), logx.Err(err))
		writeError(w, http.StatusBadGateway, "group list unavailable")
		return g, false
	}
	return g, true
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	g, ok := s.group(w, r)
	if !ok {
		return
	}
	day, week, err := s.sched.Day(r.Context(), g.Key())
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DayResponse{Group: g.FullName, Week: week, Day: day})
}

func (s *Server) loadWeek(w http.ResponseWriter, r *http.Request) (source.Group, schedule.WeekSchedule, int, bool) {
	g, ok := s.group(w, r)
	if !ok {
		return g, nil, 0, false
	}
	days, week, err := s.sched.Week(r.Context(), g.Key())
	if err != nil {
		s.upstreamError(w, r, err)
		return g, nil, 0, false
	}
	return g, days, week, true
}

func (s *Server) week(w http.ResponseWriter, r *http.Request) {
	g, days, week, ok := s.loadWeek(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, WeekResponse{
		Group:     g.FullName,
		Week:      week,
		WeekStart: schedule.WeekStart(s.sched.Now()).Format("2006-01-02"),
		Days:      days,
	})
}

func (s *Server) weekICS(w http.ResponseWriter, r *http.Request) {
	g, days, _, ok := s.loadWeek(w, r)
	if !ok {
		return
	}
	start := schedule.WeekStart(s.sched.Now())
	cal := export.WeekCalendar(g.FullName, days, start, s.sched.Location())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule-`+start.Format("2006-01-02")+`.ics"`)
	_, _ = w.Write([]byte(export.Render(cal)))
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		s.sched.InvalidateAll()
		s.log.Info("cache invalidated", logx.String("scope", "all"))
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": "all"})
		return
	}
	g, err := s.groups.Lookup(r.Context(), key)
	if errors.Is(err, source.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found: "+key)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "group list unavailable")
		return
	}
	s.sched.Invalidate(g.Key())
	s.log.Info("cache invalidated", logx.String("scope", g.Key().String()))
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": g.Key().String()})
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("schedule unavailable", logx.String("rid", RequestID(r.Context())), logx.Err(err))
	writeError(w, http.StatusBadGateway, "schedule unavailable")
}
