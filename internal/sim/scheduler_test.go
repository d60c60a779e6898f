package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/goleak"

	"habitat/internal/chart"
	"habitat/internal/config"
	"habitat/internal/habitat"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/storage"
	"habitat/internal/telemetry"
)

type cycleUniform struct {
	values []float64
	pos    int
}

func (c *cycleUniform) Float64() float64 {
	v := c.values[c.pos%len(c.values)]
	c.pos++
	return v
}

type capturePublisher struct {
	samples []model.Sample
	alerts  []model.AlertLogEntry
}

func (c *capturePublisher) PublishSample(ctx context.Context, s model.Sample) error {
	c.samples = append(c.samples, s)
	return nil
}

func (c *capturePublisher) PublishAlerts(ctx context.Context, entries []model.AlertLogEntry) error {
	c.alerts = append(c.alerts, entries...)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func newHabitat(t *testing.T) *habitat.Habitat {
	t.Helper()
	cfg := config.DefaultConfig()
	h, err := habitat.Open(context.Background(), habitat.Options{
		Store:      storage.NewMemory(),
		Logs:       cfg.Logs,
		Thresholds: cfg.Thresholds,
	})
	if err != nil {
		t.Fatalf("open habitat: %v", err)
	}
	return h
}

func TestTickPipeline(t *testing.T) {
	h := newHabitat(t)
	snaps := metrics.NewStore()
	board := chart.NewBoard(25)
	pub := &capturePublisher{}
	s := NewScheduler(Options{
		Generator: telemetry.NewGenerator(telemetry.NewSequenceSource(0)),
		Clock:     telemetry.NewClock(0.1),
		Habitat:   h,
		Snapshots: snaps,
		Board:     board,
		Publisher: pub,
		Occupancy: &cycleUniform{values: []float64{0.2}},
	})

	res := s.Tick(context.Background())
	snap, ok := snaps.Latest()
	if !ok {
		t.Fatalf("snapshot not stored")
	}
	if math.Abs(snap.Sample.Tick-0.1) > 1e-12 {
		t.Fatalf("expected tick 0.1, got %v", snap.Sample.Tick)
	}
	want := 20 + 2*math.Sin(0.1*0.5)
	if snap.Sample.Oxygen != want {
		t.Fatalf("oxygen %v, want %v", snap.Sample.Oxygen, want)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Message != "All systems nominal" {
		t.Fatalf("expected nominal tick, got %+v", res.Alerts)
	}
	if len(pub.samples) != 1 || len(pub.alerts) != 0 {
		t.Fatalf("unexpected publishes samples=%d alerts=%d", len(pub.samples), len(pub.alerts))
	}
	if d := board.Snapshot(); len(d.Oxygen.Values) != 1 {
		t.Fatalf("chart not updated")
	}
}

func TestTickLogsBreaches(t *testing.T) {
	h := newHabitat(t)
	pub := &capturePublisher{}
	// Large negative noise drives every channel to its lower clamp.
	s := NewScheduler(Options{
		Generator: telemetry.NewGenerator(telemetry.NewSequenceSource(-100)),
		Habitat:   h,
		Publisher: pub,
		Occupancy: &cycleUniform{values: []float64{0.2}},
	})
	res := s.Tick(context.Background())
	if len(res.Logged) == 0 {
		t.Fatalf("expected breaches at lower clamps")
	}
	if res.Logged[0].Message != "Oxygen levels critical: 18.0%" {
		t.Fatalf("unexpected first alert %q", res.Logged[0].Message)
	}
	if h.Engine.AlertLog().Len() != len(res.Logged) || len(pub.alerts) != len(res.Logged) {
		t.Fatalf("logged=%d journal=%d published=%d", len(res.Logged), h.Engine.AlertLog().Len(), len(pub.alerts))
	}
}

func TestShuffleBays(t *testing.T) {
	h := newHabitat(t)
	snaps := metrics.NewStore()
	s := NewScheduler(Options{
		Habitat:   h,
		Snapshots: snaps,
		Bays:      6,
		Occupancy: &cycleUniform{values: []float64{0.9, 0.5, 0.51, 0.1, 0.7, 0.99}},
	})
	bays := s.ShuffleBays()
	wantOccupied := []bool{true, false, true, false, true, true}
	for i, b := range bays {
		if b.Occupied != wantOccupied[i] {
			t.Fatalf("bay %d occupied=%v", i, b.Occupied)
		}
	}
	if bays[0].Occupant != "Dheeraj Chennaboina" || bays[4].Occupant != "Dheeraj Chennaboina" || bays[5].Occupant != "Tarushv Kosgi" {
		t.Fatalf("unexpected occupants %+v", bays)
	}
	if bays[1].Occupant != "" {
		t.Fatalf("vacant bay should have no occupant")
	}
	if got := snaps.Bays(); len(got) != 6 {
		t.Fatalf("bays not stored")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHabitat(t)
	snaps := metrics.NewStore()
	s := NewScheduler(Options{
		Generator:         telemetry.NewGenerator(telemetry.NewSeededNormal(7)),
		Habitat:           h,
		Snapshots:         snaps,
		TickInterval:      5 * time.Millisecond,
		OccupancyInterval: 20 * time.Millisecond,
		Occupancy:         telemetry.NewSeededUniform(7),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if snap, ok := snaps.Latest(); ok && snap.Sample.Tick >= 0.3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("scheduler did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return")
	}
	if len(snaps.Bays()) != defaultBays {
		t.Fatalf("expected initial bay shuffle")
	}
}
