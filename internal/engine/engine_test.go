package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"habitat/internal/config"
	"habitat/internal/journal"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/storage"
)

type failingStore struct {
	storage.Store
}

func (f failingStore) Save(ctx context.Context, key string, value []byte) error {
	return errors.New("quota exceeded")
}

func nominalSample() model.Sample {
	return model.Sample{
		Tick:        1,
		Oxygen:      21,
		Temperature: 20,
		Food:        60,
		PowerUsed:   50,
		Sleep:       8,
		Wellness:    model.Wellness{Stress: 7, Mood: 7, Energy: 7, Focus: 7, Health: 7},
	}
}

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newEvaluatorForTest(t *testing.T, store storage.Store, opts ...Option) *Evaluator {
	t.Helper()
	ctx := context.Background()
	alertLog := journal.Open[model.AlertLogEntry](ctx, store, "alertLog", 0, nil)
	cmdLog := journal.Open[model.CommandLogEntry](ctx, store, "commandLog", 0, nil)
	clock := &stepClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return NewEvaluator(config.DefaultThresholds(), alertLog, cmdLog, opts...)
}

func TestNominalSample(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	res := eval.Evaluate(context.Background(), nominalSample(), nil, "")
	if len(res.Alerts) != 1 || res.Alerts[0].Message != NominalMessage || res.Alerts[0].Severity != model.SeverityNormal {
		t.Fatalf("expected nominal notice, got %+v", res.Alerts)
	}
	if res.Breaching() {
		t.Fatalf("nominal sample should not breach")
	}
	if n := eval.AlertLog().Len(); n != 0 {
		t.Fatalf("nominal notice must not be logged, log has %d", n)
	}
}

func TestOxygenBoundaryIsStrict(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	ctx := context.Background()

	s := nominalSample()
	s.Oxygen = 19.0
	if res := eval.Evaluate(ctx, s, nil, ""); res.Breaching() {
		t.Fatalf("19.0 should not alert: %+v", res.Alerts)
	}

	s.Oxygen = 18.999
	res := eval.Evaluate(ctx, s, nil, "")
	if len(res.Logged) != 1 {
		t.Fatalf("expected one alert, got %+v", res.Logged)
	}
	got := res.Logged[0]
	if got.Channel != model.ChannelOxygen || got.Severity != model.SeverityCritical {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Message != "Oxygen levels critical: 19.0%" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.User != SystemActor {
		t.Fatalf("expected System actor, got %q", got.User)
	}
}

func TestTemperatureBothBounds(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	ctx := context.Background()
	cases := []struct {
		temp  float64
		alert bool
	}{
		{25, false},
		{25.05, true},
		{0, false},
		{-0.4, true},
	}
	for _, tc := range cases {
		s := nominalSample()
		s.Temperature = tc.temp
		res := eval.Evaluate(ctx, s, nil, "")
		if res.Breaching() != tc.alert {
			t.Fatalf("temp %v: expected alert=%v, got %+v", tc.temp, tc.alert, res.Alerts)
		}
	}
	entries := eval.AlertLog().List(0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 logged entries, got %d", len(entries))
	}
	if entries[1].Message != "Temperature out of range: -0.4°C" {
		t.Fatalf("unexpected message %q", entries[1].Message)
	}
}

func TestOverrideSuppressesOnlyThatChannel(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	s := nominalSample()
	s.Food = 12.34
	s.PowerUsed = 95

	res := eval.Evaluate(context.Background(), s, model.OverrideMap{model.ChannelFood: true}, "")
	if len(res.Logged) != 1 || res.Logged[0].Channel != model.ChannelPower {
		t.Fatalf("expected only power logged, got %+v", res.Logged)
	}
	if res.Logged[0].Message != "Power usage high: 95.0%" || res.Logged[0].Severity != model.SeverityWarning {
		t.Fatalf("unexpected power entry %+v", res.Logged[0])
	}
	if len(res.Suppressed) != 1 || res.Suppressed[0].Channel != model.ChannelFood || !res.Suppressed[0].Overridden {
		t.Fatalf("expected food suppressed, got %+v", res.Suppressed)
	}
	for _, e := range eval.AlertLog().List(0) {
		if e.Channel == model.ChannelFood {
			t.Fatalf("overridden channel was logged: %+v", e)
		}
	}
}

func TestOverrideAllBreachesReportsNominal(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	s := nominalSample()
	s.Sleep = 4
	res := eval.Evaluate(context.Background(), s, model.OverrideMap{model.ChannelSleep: true}, "")
	if len(res.Alerts) != 1 || res.Alerts[0].Message != NominalMessage {
		t.Fatalf("expected nominal notice, got %+v", res.Alerts)
	}
	if len(res.Suppressed) != 1 {
		t.Fatalf("expected suppressed sleep alert, got %+v", res.Suppressed)
	}
}

func TestSequentialEvaluationsAppendInOrder(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	ctx := context.Background()
	s := nominalSample()
	s.Food = 5
	for i := 0; i < 3; i++ {
		eval.Evaluate(ctx, s, nil, "")
	}
	entries := eval.AlertLog().List(0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatalf("timestamps decreased at %d: %v < %v", i, entries[i].Timestamp, entries[i-1].Timestamp)
		}
	}
}

func TestMultipleBreachesFollowChannelOrder(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	s := model.Sample{
		Oxygen:      15,
		Temperature: 30,
		Food:        10,
		PowerUsed:   99,
		Sleep:       3,
		Wellness:    model.Wellness{Stress: 1, Mood: 1, Energy: 1, Focus: 1, Health: 1},
	}
	res := eval.Evaluate(context.Background(), s, nil, "Lalith Dasa")
	if len(res.Logged) != len(model.Channels) {
		t.Fatalf("expected %d entries, got %d", len(model.Channels), len(res.Logged))
	}
	for i, ch := range model.Channels {
		if res.Logged[i].Channel != ch {
			t.Fatalf("entry %d: expected %s, got %s", i, ch, res.Logged[i].Channel)
		}
		if res.Logged[i].User != "Lalith Dasa" {
			t.Fatalf("entry %d: unexpected user %q", i, res.Logged[i].User)
		}
	}
}

func TestWellnessMeanAlert(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	s := nominalSample()
	s.Wellness = model.Wellness{Stress: 10, Mood: 1, Energy: 1, Focus: 1, Health: 1}
	res := eval.Evaluate(context.Background(), s, nil, "")
	if len(res.Logged) != 1 {
		t.Fatalf("expected one wellness alert, got %+v", res.Logged)
	}
	got := res.Logged[0]
	if got.Message != "Crew wellness low: 2.8/10" || got.Severity != model.SeverityWarning {
		t.Fatalf("unexpected wellness entry %+v", got)
	}
}

func TestPersistFailureKeepsEvaluating(t *testing.T) {
	reg := prometheus.NewRegistry()
	col := metrics.NewCollectors(reg)
	eval := newEvaluatorForTest(t, failingStore{Store: storage.NewMemory()}, WithMetrics(col))
	s := nominalSample()
	s.Oxygen = 10
	res := eval.Evaluate(context.Background(), s, nil, "")
	if len(res.Logged) != 1 {
		t.Fatalf("evaluation should report the alert even if persistence fails")
	}
	if eval.AlertLog().Len() != 1 {
		t.Fatalf("entry should remain in memory")
	}
	if got := testutil.ToFloat64(col.PersistErrors.WithLabelValues("alertLog")); got != 1 {
		t.Fatalf("expected persist error counted, got %f", got)
	}
	if got := testutil.ToFloat64(col.Alerts.WithLabelValues("oxygen", "critical")); got != 1 {
		t.Fatalf("expected alert counted, got %f", got)
	}
}

func TestLogCommand(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	ctx := context.Background()
	first := eval.LogCommand(ctx, "whoami", "Not logged in", "")
	if first.User != AnonymousActor {
		t.Fatalf("expected Anonymous, got %q", first.User)
	}
	eval.LogCommand(ctx, "login dheeraj", "Logged in as Dheeraj Chennaboina (Commander)", "Dheeraj Chennaboina")
	entries := eval.CommandLog().List(0)
	if len(entries) != 2 || entries[1].User != "Dheeraj Chennaboina" || entries[1].Command != "login dheeraj" {
		t.Fatalf("unexpected command log %+v", entries)
	}
}

func TestUpdateConfigChangesThresholds(t *testing.T) {
	eval := newEvaluatorForTest(t, storage.NewMemory())
	s := nominalSample()
	s.PowerUsed = 85
	if res := eval.Evaluate(context.Background(), s, nil, ""); res.Breaching() {
		t.Fatalf("85%% should be under the default limit")
	}
	cfg := config.DefaultConfig()
	cfg.Thresholds.PowerMax = 80
	eval.UpdateConfig(cfg)
	res := eval.Evaluate(context.Background(), s, nil, "")
	if len(res.Logged) != 1 || res.Logged[0].Channel != model.ChannelPower {
		t.Fatalf("expected power alert after threshold change, got %+v", res.Logged)
	}
}
