package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"habitat/internal/config"
	"habitat/internal/journal"
	"habitat/internal/metrics"
	"habitat/internal/model"
)

const (
	NominalMessage = "All systems nominal"
	SystemActor    = "System"
	AnonymousActor = "Anonymous"
)

type Evaluation struct {
	// Alerts holds every breach that was logged this tick, or the single
	// nominal notice when there were none.
	Alerts []model.ActiveAlert `json:"alerts"`
	// Suppressed holds breaches hidden by an override. They are never logged.
	Suppressed []model.ActiveAlert   `json:"suppressed,omitempty"`
	Logged     []model.AlertLogEntry `json:"logged,omitempty"`
}

// Breaching reports whether any non-overridden channel is out of bounds.
func (e Evaluation) Breaching() bool {
	return len(e.Logged) > 0
}

type Evaluator struct {
	logger     *slog.Logger
	metrics    *metrics.Collectors
	alertLog   *journal.Log[model.AlertLogEntry]
	commandLog *journal.Log[model.CommandLogEntry]
	thresholds atomic.Value
	now        func() time.Time
}

type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

func WithMetrics(c *metrics.Collectors) Option {
	return func(e *Evaluator) { e.metrics = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(thresholds config.ThresholdsConfig, alertLog *journal.Log[model.AlertLogEntry], commandLog *journal.Log[model.CommandLogEntry], opts ...Option) *Evaluator {
	e := &Evaluator{
		alertLog:   alertLog,
		commandLog: commandLog,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.thresholds.Store(thresholds)
	return e
}

func (e *Evaluator) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	e.thresholds.Store(cfg.Thresholds)
}

func (e *Evaluator) Thresholds() config.ThresholdsConfig {
	if v := e.thresholds.Load(); v != nil {
		return v.(config.ThresholdsConfig)
	}
	return config.DefaultThresholds()
}

// Evaluate checks every channel of sample in fixed order. Each breach on a
// channel that is not overridden is appended to the alert log before
// Evaluate returns.
func (e *Evaluator) Evaluate(ctx context.Context, sample model.Sample, overrides model.OverrideMap, actor string) Evaluation {
	if actor == "" {
		actor = SystemActor
	}
	t := e.Thresholds()
	var out Evaluation
	for _, r := range rules {
		value, breached := r.check(t, sample)
		if !breached {
			continue
		}
		alert := model.ActiveAlert{
			Channel:  r.channel,
			Message:  fmt.Sprintf(r.format, value),
			Severity: r.severity,
			Value:    value,
		}
		if overrides.Suppressed(r.channel) {
			alert.Overridden = true
			out.Suppressed = append(out.Suppressed, alert)
			e.metrics.AlertSuppressed(r.channel)
			continue
		}
		entry := model.AlertLogEntry{
			Timestamp: e.now(),
			Channel:   r.channel,
			Message:   alert.Message,
			Severity:  r.severity,
			User:      actor,
		}
		e.appendAlert(ctx, entry)
		out.Alerts = append(out.Alerts, alert)
		out.Logged = append(out.Logged, entry)
		e.metrics.AlertRaised(r.channel, r.severity)
	}
	if len(out.Alerts) == 0 {
		out.Alerts = []model.ActiveAlert{{Message: NominalMessage, Severity: model.SeverityNormal}}
	}
	return out
}

// LogCommand records one terminal submission regardless of the tick cycle.
func (e *Evaluator) LogCommand(ctx context.Context, command, response, actor string) model.CommandLogEntry {
	if actor == "" {
		actor = AnonymousActor
	}
	entry := model.CommandLogEntry{
		Timestamp: e.now(),
		Command:   command,
		Response:  response,
		User:      actor,
	}
	if e.commandLog == nil {
		return entry
	}
	if err := e.commandLog.Append(ctx, entry); err != nil {
		e.persistFailed(e.commandLog.Key(), err)
	}
	return entry
}

func (e *Evaluator) AlertLog() *journal.Log[model.AlertLogEntry] {
	return e.alertLog
}

func (e *Evaluator) CommandLog() *journal.Log[model.CommandLogEntry] {
	return e.commandLog
}

func (e *Evaluator) appendAlert(ctx context.Context, entry model.AlertLogEntry) {
	if e.logger != nil {
		e.logger.Warn("alert triggered",
			"channel", entry.Channel,
			"severity", entry.Severity,
			"message", entry.Message,
			"user", entry.User,
		)
	}
	if e.alertLog == nil {
		return
	}
	if err := e.alertLog.Append(ctx, entry); err != nil {
		e.persistFailed(e.alertLog.Key(), err)
	}
}

func (e *Evaluator) persistFailed(key string, err error) {
	e.metrics.PersistFailed(key)
	if e.logger != nil {
		e.logger.Warn("log persist failed", "key", key, "err", err)
	}
}
