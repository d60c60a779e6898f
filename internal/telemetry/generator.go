package telemetry

import (
	"math"
	"sync"

	"habitat/internal/model"
)

// Model describes one synthetic channel:
// clamp(Base + Amplitude*sin(tick*Frequency) + N(0, Sigma), Min, Max).
type Model struct {
	Base      float64
	Amplitude float64
	Frequency float64
	Sigma     float64
	Min       float64
	Max       float64
}

func (m Model) value(tick, noise float64) float64 {
	v := m.Base + m.Amplitude*math.Sin(tick*m.Frequency) + m.Sigma*noise
	return clamp(v, m.Min, m.Max)
}

var (
	OxygenModel      = Model{Base: 20, Amplitude: 2, Frequency: 0.5, Sigma: 0.3, Min: 18, Max: 22}
	TemperatureModel = Model{Base: 10, Amplitude: 5, Frequency: 0.3, Sigma: 1.0, Min: -10, Max: 25}
	FoodModel        = Model{Base: 80, Amplitude: 10, Frequency: 0.2, Sigma: 2.0, Min: 0, Max: 100}
	PowerModel       = Model{Base: 40, Amplitude: 20, Frequency: 0.4, Sigma: 5.0, Min: 0, Max: 100}
	SleepModel       = Model{Base: 7.5, Amplitude: 1.5, Frequency: 0.6, Sigma: 0.2, Min: 6, Max: 9}

	StressModel = Model{Base: 5, Amplitude: 2, Frequency: 0.7, Sigma: 0.5, Min: 1, Max: 10}
	MoodModel   = Model{Base: 7, Amplitude: 1, Frequency: 0.8, Sigma: 0.3, Min: 1, Max: 10}
	EnergyModel = Model{Base: 6, Amplitude: 2, Frequency: 0.9, Sigma: 0.4, Min: 1, Max: 10}
	FocusModel  = Model{Base: 8, Amplitude: 1, Frequency: 1.0, Sigma: 0.3, Min: 1, Max: 10}
	HealthModel = Model{Base: 7, Amplitude: 1.5, Frequency: 0.5, Sigma: 0.4, Min: 1, Max: 10}
)

type Generator struct {
	mu    sync.Mutex
	noise NormalSource
}

func NewGenerator(noise NormalSource) *Generator {
	if noise == nil {
		noise = NewSeededNormal(1)
	}
	return &Generator{noise: noise}
}

// Generate draws one sample for the given tick. Noise is consumed in a fixed
// channel order so a replayed source gives identical output.
func (g *Generator) Generate(tick float64) model.Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.Sample{
		Tick:        tick,
		Oxygen:      OxygenModel.value(tick, g.noise.Normal()),
		Temperature: TemperatureModel.value(tick, g.noise.Normal()),
		Food:        FoodModel.value(tick, g.noise.Normal()),
		PowerUsed:   PowerModel.value(tick, g.noise.Normal()),
		Sleep:       SleepModel.value(tick, g.noise.Normal()),
		Wellness: model.Wellness{
			Stress: StressModel.value(tick, g.noise.Normal()),
			Mood:   MoodModel.value(tick, g.noise.Normal()),
			Energy: EnergyModel.value(tick, g.noise.Normal()),
			Focus:  FocusModel.value(tick, g.noise.Normal()),
			Health: HealthModel.value(tick, g.noise.Normal()),
		},
	}
}

// Clock is the simulated time counter advanced once per tick.
type Clock struct {
	mu   sync.Mutex
	step float64
	now  float64
}

func NewClock(step float64) *Clock {
	if step <= 0 {
		step = 0.1
	}
	return &Clock{step: step}
}

func (c *Clock) Next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
