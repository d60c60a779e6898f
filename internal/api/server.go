package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitat/internal/chart"
	"habitat/internal/config"
	"habitat/internal/crew"
	"habitat/internal/habitat"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/terminal"
	"habitat/internal/wellness"
)

const maxBody = 1 << 20

type Deps struct {
	Config     *config.Manager
	Habitat    *habitat.Habitat
	Snapshots  *metrics.Store
	Board      *chart.Board
	Terminal   *terminal.Dispatcher
	Collectors *metrics.Collectors
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
	Version    string
}

type Server struct {
	cfg      *config.Manager
	hab      *habitat.Habitat
	snaps    *metrics.Store
	board    *chart.Board
	term     *terminal.Dispatcher
	metrics  *metrics.Collectors
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
	now      func() time.Time
}

type statusResponse struct {
	Status      string    `json:"status"`
	Time        string    `json:"time"`
	Version     string    `json:"version"`
	ConfigPath  string    `json:"config_path"`
	Tick        *float64  `json:"tick,omitempty"`
	CurrentUser string    `json:"current_user,omitempty"`
	Storage     string    `json:"storage"`
	Stream      bool      `json:"stream"`
	API         apiStatus `json:"api"`
	Terminal    apiStatus `json:"terminal"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		hab:      d.Habitat,
		snaps:    d.Snapshots,
		board:    d.Board,
		term:     d.Terminal,
		metrics:  d.Collectors,
		gatherer: d.Gatherer,
		logger:   d.Logger,
		version:  d.Version,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /charts", s.handleCharts)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("GET /bays", s.handleBays)
	mux.HandleFunc("GET /logs/alerts", s.handleAlertLog)
	mux.HandleFunc("GET /logs/commands", s.handleCommandLog)
	mux.HandleFunc("GET /logs/{kind}/export", s.handleExport)
	mux.HandleFunc("GET /admin/overrides", s.handleGetOverrides)
	mux.HandleFunc("POST /admin/overrides", s.handleSetOverride)
	mux.HandleFunc("POST /admin/clear", s.handleClear)
	mux.HandleFunc("GET /config/thresholds", s.handleGetThresholds)
	mux.HandleFunc("POST /config/thresholds", s.handleSetThresholds)
	mux.HandleFunc("POST /commands", s.handleCommand)
	mux.HandleFunc("GET /session", s.handleSession)
	mux.HandleFunc("GET /crew", s.handleListCrew)
	mux.HandleFunc("POST /crew", s.handleUpsertCrew)
	mux.HandleFunc("DELETE /crew/{name}", s.handleDeleteCrew)
	mux.HandleFunc("GET /checkins", s.handleListCheckIns)
	mux.HandleFunc("POST /checkins", s.handleSubmitCheckIn)
	mux.HandleFunc("GET /chat", s.handleListChat)
	mux.HandleFunc("POST /chat", s.handlePostChat)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return withLogging(withRecovery(mux, s.logger, s.metrics), s.logger, s.metrics)
}

func Start(ctx context.Context, d Deps) *http.Server {
	if d.Config == nil {
		return nil
	}
	current := d.Config.Get().API
	if !current.Enabled {
		if d.Logger != nil {
			d.Logger.Info("api disabled")
		}
		return nil
	}
	if d.Logger != nil {
		d.Logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(d)
	httpServer := &http.Server{
		Addr:              current.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if d.Logger != nil {
				d.Logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	resp := statusResponse{
		Status:      "ok",
		Time:        s.now().Format(time.RFC3339Nano),
		Version:     s.version,
		ConfigPath:  s.configPath(),
		CurrentUser: s.hab.Actor(),
		Storage:     cfg.Storage.Driver,
		Stream:      cfg.Stream.Enabled,
		API:         apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Terminal:    apiStatus{Enabled: cfg.Terminal.Enabled, Addr: cfg.Terminal.Addr},
	}
	if snap, ok := s.snaps.Latest(); ok {
		tick := snap.Sample.Tick
		resp.Tick = &tick
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snaps.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no telemetry yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sample":     snap.Sample,
		"updated_at": snap.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	var data chart.Data
	if s.board != nil {
		data = s.board.Snapshot()
	}
	radar := chart.WellnessRadar(s.hab.Crew.Names(), s.hab.Wellness.Current)
	data.Wellness = &radar
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snaps.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no telemetry yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":     snap.Alerts,
		"suppressed": snap.Suppressed,
		"tick":       snap.Sample.Tick,
	})
}

func (s *Server) handleBays(w http.ResponseWriter, r *http.Request) {
	bays := s.snaps.Bays()
	writeJSON(w, http.StatusOK, map[string]any{
		"bays":  bays,
		"count": len(bays),
	})
}

func (s *Server) handleAlertLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(r, "limit")
	channel := strings.ToLower(strings.TrimSpace(q.Get("type")))
	severity := strings.ToLower(strings.TrimSpace(q.Get("severity")))
	list := s.hab.Engine.AlertLog().Filter(func(e model.AlertLogEntry) bool {
		if channel != "" && string(e.Channel) != channel {
			return false
		}
		return severity == "" || string(e.Severity) == severity
	})
	list = tail(list, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": list,
		"count":   len(list),
	})
}

func (s *Server) handleCommandLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	list := s.hab.Engine.CommandLog().Filter(func(e model.CommandLogEntry) bool {
		return user == "" || strings.EqualFold(e.User, user)
	})
	list = tail(list, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": list,
		"count":   len(list),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var (
		kind  string
		write func(io.Writer) error
	)
	switch r.PathValue("kind") {
	case "alerts":
		kind = "alert"
		entries := s.hab.Engine.AlertLog().List(0)
		write = func(out io.Writer) error { return habitat.WriteAlertLog(out, entries) }
	case "commands":
		kind = "command"
		entries := s.hab.Engine.CommandLog().List(0)
		write = func(out io.Writer) error { return habitat.WriteCommandLog(out, entries) }
	default:
		writeError(w, http.StatusNotFound, "unknown log")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+habitat.ExportFilename(kind, s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil && s.logger != nil {
		s.logger.Warn("log export failed", "kind", kind, "err", err)
	}
}

func (s *Server) handleGetOverrides(w http.ResponseWriter, r *http.Request) {
	current := s.hab.Overrides()
	out := make(map[model.Channel]bool, len(model.Channels))
	for _, ch := range model.Channels {
		out[ch] = current.Suppressed(ch)
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": out})
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel    string `json:"channel"`
		Suppressed bool   `json:"suppressed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ch, ok := model.ParseChannel(strings.ToLower(strings.TrimSpace(req.Channel)))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown channel")
		return
	}
	updated, err := s.hab.SetOverride(r.Context(), ch, req.Suppressed)
	if err != nil && updated == nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("override not persisted", "channel", ch, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": updated})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hab.Require(model.PrivilegeAdmin); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var req struct {
		Target string `json:"target"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "logs"
	}
	switch target {
	case "all":
		s.clearTelemetry()
		if err := s.hab.ClearLogs(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "logs":
		if err := s.hab.ClearLogs(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "telemetry":
		s.clearTelemetry()
	default:
		writeError(w, http.StatusBadRequest, "unknown target")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "target": target})
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"thresholds": s.hab.Engine.Thresholds()})
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hab.Require(model.PrivilegeAdmin); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	// Fields missing from the body keep their current values.
	th := s.hab.Engine.Thresholds()
	if !decodeBody(w, r, &th) {
		return
	}
	next := *s.currentConfig()
	next.Thresholds = th
	if err := config.Validate(&next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg != nil {
		if err := s.cfg.Update(&next); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.hab.ApplyConfig(r.Context(), &next)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "thresholds": th})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	resp := s.term.Execute(r.Context(), req.Command)
	writeJSON(w, http.StatusOK, map[string]any{
		"command":  req.Command,
		"response": resp,
		"user":     s.hab.Actor(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	m, ok := s.hab.CurrentUser()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"logged_in": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logged_in": true, "member": m})
}

func (s *Server) handleListCrew(w http.ResponseWriter, r *http.Request) {
	members := s.hab.Crew.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

func (s *Server) handleUpsertCrew(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hab.Require(model.PrivilegeAdmin); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req struct {
		Original string           `json:"original"`
		Member   model.CrewMember `json:"member"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := s.hab.UpsertMember(r.Context(), req.Original, req.Member)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if req.Original == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"member": m})
}

func (s *Server) handleDeleteCrew(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hab.Require(model.PrivilegeAdmin); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	err := s.hab.Crew.Delete(r.Context(), r.PathValue("name"))
	if errors.Is(err, crew.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("crew roster not persisted", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		user = s.hab.Actor()
	}
	if user == "" {
		writeError(w, http.StatusBadRequest, "user required")
		return
	}
	limit := queryInt(r, "limit")
	if limit == 0 {
		limit = wellness.HistoryView
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"current": s.hab.Wellness.Current(user),
		"history": s.hab.Wellness.History(user, limit),
	})
}

func (s *Server) handleSubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	var scores model.WellnessScores
	if !decodeBody(w, r, &scores) {
		return
	}
	entry, err := s.hab.SubmitCheckIn(r.Context(), scores)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"checkin": entry})
}

func (s *Server) handleListChat(w http.ResponseWriter, r *http.Request) {
	list := s.hab.Chat.List(queryInt(r, "limit"))
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": list,
		"count":    len(list),
	})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := s.hab.PostChat(r.Context(), req.Message)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Server) clearTelemetry() {
	s.snaps.Clear()
	if s.board != nil {
		s.board.Reset()
	}
}

func (s *Server) currentConfig() *config.Config {
	if s.cfg == nil {
		return config.DefaultConfig()
	}
	return s.cfg.Get()
}

func (s *Server) configPath() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Path()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, habitat.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, habitat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, crew.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crew.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, crew.ErrInvalid),
		errors.Is(err, wellness.ErrOutOfRange),
		errors.Is(err, habitat.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func tail[T any](list []T, n int) []T {
	if n <= 0 || n >= len(list) {
		return list
	}
	return list[len(list)-n:]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
