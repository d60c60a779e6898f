// Package sim drives the habitat on fixed periods: one telemetry tick per
// tick interval and a bay-occupancy reshuffle per occupancy interval.
package sim

import (
	"context"
	"log/slog"
	"time"

	"habitat/internal/chart"
	"habitat/internal/engine"
	"habitat/internal/habitat"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/stream"
	"habitat/internal/telemetry"
)

const (
	defaultTickInterval      = time.Second
	defaultOccupancyInterval = 30 * time.Second
	defaultBays              = 4
)

type Options struct {
	Generator         *telemetry.Generator
	Clock             *telemetry.Clock
	Habitat           *habitat.Habitat
	Snapshots         *metrics.Store
	Board             *chart.Board
	Publisher         stream.Publisher
	Collectors        *metrics.Collectors
	Logger            *slog.Logger
	TickInterval      time.Duration
	OccupancyInterval time.Duration
	Bays              int
	// Occupancy draws on [0,1); a bay is occupied when the draw exceeds 0.5.
	Occupancy telemetry.UniformSource
	Now       func() time.Time
}

type Scheduler struct {
	gen               *telemetry.Generator
	clock             *telemetry.Clock
	hab               *habitat.Habitat
	snaps             *metrics.Store
	board             *chart.Board
	pub               stream.Publisher
	metrics           *metrics.Collectors
	logger            *slog.Logger
	tickInterval      time.Duration
	occupancyInterval time.Duration
	bays              int
	occupancy         telemetry.UniformSource
	now               func() time.Time
}

func NewScheduler(o Options) *Scheduler {
	s := &Scheduler{
		gen:               o.Generator,
		clock:             o.Clock,
		hab:               o.Habitat,
		snaps:             o.Snapshots,
		board:             o.Board,
		pub:               o.Publisher,
		metrics:           o.Collectors,
		logger:            o.Logger,
		tickInterval:      o.TickInterval,
		occupancyInterval: o.OccupancyInterval,
		bays:              o.Bays,
		occupancy:         o.Occupancy,
		now:               o.Now,
	}
	if s.gen == nil {
		s.gen = telemetry.NewGenerator(nil)
	}
	if s.clock == nil {
		s.clock = telemetry.NewClock(0)
	}
	if s.snaps == nil {
		s.snaps = metrics.NewStore()
	}
	if s.pub == nil {
		s.pub = stream.Noop{}
	}
	if s.tickInterval <= 0 {
		s.tickInterval = defaultTickInterval
	}
	if s.occupancyInterval <= 0 {
		s.occupancyInterval = defaultOccupancyInterval
	}
	if s.bays <= 0 {
		s.bays = defaultBays
	}
	if s.occupancy == nil {
		s.occupancy = telemetry.NewSeededUniform(uint64(time.Now().UnixNano()))
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Run shuffles the bays once, then ticks until ctx is done. Both periods are
// served from one goroutine so a tick always completes before the next.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("scheduler started", "tick_interval", s.tickInterval, "occupancy_interval", s.occupancyInterval, "bays", s.bays)
	}
	s.ShuffleBays()
	ticks := time.NewTicker(s.tickInterval)
	defer ticks.Stop()
	occupancy := time.NewTicker(s.occupancyInterval)
	defer occupancy.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("scheduler stopped")
			}
			return nil
		case <-ticks.C:
			s.Tick(ctx)
		case <-occupancy.C:
			s.ShuffleBays()
		}
	}
}

// Tick advances the simulated clock, generates and evaluates one sample and
// publishes the result.
func (s *Scheduler) Tick(ctx context.Context) engine.Evaluation {
	sample := s.gen.Generate(s.clock.Next())
	at := s.now()
	if s.board != nil {
		s.board.Push(at, sample)
	}
	result := s.hab.Evaluate(ctx, sample)
	s.snaps.Update(sample, result.Alerts, result.Suppressed)
	s.metrics.ObserveSample(sample)

	// Publish failures are counted by the publisher and never stop the loop.
	_ = s.pub.PublishSample(ctx, sample)
	_ = s.pub.PublishAlerts(ctx, result.Logged)
	return result
}

// ShuffleBays marks each bay occupied with probability one half. An
// occupied bay i is labelled with crew member i modulo the roster size.
func (s *Scheduler) ShuffleBays() []model.Bay {
	bays := make([]model.Bay, s.bays)
	for i := range bays {
		bays[i].Index = i
		if s.occupancy.Float64() > 0.5 {
			bays[i].Occupied = true
			if m, ok := s.hab.Crew.At(i); ok {
				bays[i].Occupant = m.Name
			}
		}
	}
	s.snaps.SetBays(bays)
	return bays
}
