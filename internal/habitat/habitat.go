// Package habitat is the application state: alert overrides, the alert and
// command logs, crew roster, wellness book, chat and the current session.
// Every component reads and mutates it through these methods.
package habitat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitat/internal/config"
	"habitat/internal/crew"
	"habitat/internal/engine"
	"habitat/internal/journal"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/storage"
	"habitat/internal/wellness"
)

const (
	OverridesKey  = "alertOverrides"
	AlertLogKey   = "alertLog"
	CommandLogKey = "commandLog"
	SessionKey    = "currentUser"
	ChatKey       = "crewChat"
)

var (
	ErrNotLoggedIn  = errors.New("login required")
	ErrForbidden    = errors.New("privilege required")
	ErrEmptyMessage = errors.New("empty chat message")
)

type Options struct {
	Store      storage.Store
	Logs       config.LogsConfig
	Thresholds config.ThresholdsConfig
	Logger     *slog.Logger
	Metrics    *metrics.Collectors
	Now        func() time.Time
}

type session struct {
	Name    string    `json:"name"`
	LoginAt time.Time `json:"loginAt"`
}

type Habitat struct {
	mu        sync.RWMutex
	store     storage.Store
	logger    *slog.Logger
	metrics   *metrics.Collectors
	now       func() time.Time
	overrides model.OverrideMap
	session   *session

	Engine   *engine.Evaluator
	Crew     *crew.Roster
	Wellness *wellness.Book
	Chat     *journal.Log[model.ChatMessage]
}

func Open(ctx context.Context, opts Options) (*Habitat, error) {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	h := &Habitat{
		store:   opts.Store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     now,
	}
	roster, err := crew.Open(ctx, opts.Store, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("seed crew roster: %w", err)
	}
	h.Crew = roster
	h.Wellness = wellness.Open(ctx, opts.Store, opts.Logger)
	h.Wellness.SetClock(now)
	h.Chat = journal.Open[model.ChatMessage](ctx, opts.Store, ChatKey, opts.Logs.ChatLimit, opts.Logger)

	alertLog := journal.Open[model.AlertLogEntry](ctx, opts.Store, AlertLogKey, opts.Logs.AlertLimit, opts.Logger)
	commandLog := journal.Open[model.CommandLogEntry](ctx, opts.Store, CommandLogKey, opts.Logs.CommandLimit, opts.Logger)
	h.Engine = engine.NewEvaluator(opts.Thresholds, alertLog, commandLog,
		engine.WithLogger(opts.Logger),
		engine.WithMetrics(opts.Metrics),
		engine.WithClock(now),
	)

	h.overrides = h.loadOverrides(ctx)
	h.session = h.loadSession(ctx)
	return h, nil
}

// ApplyConfig pushes reloadable settings into the running components.
func (h *Habitat) ApplyConfig(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	h.Engine.UpdateConfig(cfg)
	if err := h.Engine.AlertLog().SetLimit(ctx, cfg.Logs.AlertLimit); err != nil {
		h.warn("alert log retention not persisted", AlertLogKey, err)
	}
	if err := h.Engine.CommandLog().SetLimit(ctx, cfg.Logs.CommandLimit); err != nil {
		h.warn("command log retention not persisted", CommandLogKey, err)
	}
	if err := h.Chat.SetLimit(ctx, cfg.Logs.ChatLimit); err != nil {
		h.warn("chat retention not persisted", ChatKey, err)
	}
}

func (h *Habitat) Overrides() model.OverrideMap {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.overrides.Clone()
}

// SetOverride suppresses or restores alerts for one channel. The current
// user must hold the admin privilege.
func (h *Habitat) SetOverride(ctx context.Context, ch model.Channel, suppressed bool) (model.OverrideMap, error) {
	if _, ok := model.ParseChannel(string(ch)); !ok {
		return nil, fmt.Errorf("unknown channel %q", ch)
	}
	if _, err := h.Require(model.PrivilegeAdmin); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.overrides[ch] = suppressed
	snapshot := h.overrides.Clone()
	h.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return snapshot, fmt.Errorf("encode overrides: %w", err)
	}
	if err := h.save(ctx, OverridesKey, data); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// Evaluate runs one alert evaluation with the current overrides, attributed
// to the logged-in member or System.
func (h *Habitat) Evaluate(ctx context.Context, sample model.Sample) engine.Evaluation {
	return h.Engine.Evaluate(ctx, sample, h.Overrides(), h.Actor())
}

// RecordCommand bumps the logged-in member's command count and appends the
// submission to the command log.
func (h *Habitat) RecordCommand(ctx context.Context, command, response string) model.CommandLogEntry {
	actor := h.Actor()
	if actor != "" {
		if _, err := h.Crew.RecordCommand(ctx, actor); err != nil && !errors.Is(err, crew.ErrNotFound) {
			h.warn("crew stats not persisted", crew.StorageKey, err)
		}
	}
	return h.Engine.LogCommand(ctx, command, response, actor)
}

func (h *Habitat) ClearLogs(ctx context.Context) error {
	var errs []error
	if err := h.Engine.AlertLog().Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := h.Engine.CommandLog().Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *Habitat) PostChat(ctx context.Context, text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}
	member, ok := h.CurrentUser()
	if !ok {
		return model.ChatMessage{}, ErrNotLoggedIn
	}
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		User:      member.Name,
		Message:   text,
		Timestamp: h.now(),
	}
	if err := h.Chat.Append(ctx, msg); err != nil {
		h.warn("chat not persisted", ChatKey, err)
	}
	return msg, nil
}

// SubmitCheckIn records wellness scores for the logged-in member.
func (h *Habitat) SubmitCheckIn(ctx context.Context, scores model.WellnessScores) (model.CheckIn, error) {
	member, ok := h.CurrentUser()
	if !ok {
		return model.CheckIn{}, ErrNotLoggedIn
	}
	entry, err := h.Wellness.Submit(ctx, member.Name, scores)
	if errors.Is(err, wellness.ErrOutOfRange) || errors.Is(err, wellness.ErrNoUser) {
		return model.CheckIn{}, err
	}
	if err != nil {
		h.warn("check-in not persisted", wellness.StorageKey, err)
	}
	return entry, nil
}

func (h *Habitat) loadOverrides(ctx context.Context) model.OverrideMap {
	out := model.OverrideMap{}
	data, ok := h.load(ctx, OverridesKey)
	if !ok {
		return out
	}
	var raw map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		h.warn("overrides corrupt, using defaults", OverridesKey, err)
		return out
	}
	for k, v := range raw {
		if ch, ok := model.ParseChannel(k); ok {
			out[ch] = v
		}
	}
	return out
}

func (h *Habitat) load(ctx context.Context, key string) ([]byte, bool) {
	if h.store == nil {
		return nil, false
	}
	data, err := h.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.warn("state load failed", key, err)
		}
		return nil, false
	}
	return data, true
}

func (h *Habitat) save(ctx context.Context, key string, data []byte) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, key, data); err != nil {
		h.warn("state not persisted", key, err)
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (h *Habitat) warn(msg, key string, err error) {
	h.metrics.PersistFailed(key)
	if h.logger != nil {
		h.logger.Warn(msg, "key", key, "err", err)
	}
}
