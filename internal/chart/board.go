// Package chart holds the data behind the dashboard gauges: rolling series
// for oxygen, temperature and sleep, single values for food and power, and
// the per-member wellness radar.
package chart

import (
	"sync"
	"time"

	"habitat/internal/model"
)

const (
	DefaultWindow = 25
	labelLayout   = "15:04:05"
)

// RadarAxes are the wellness dimensions in dataset order.
var RadarAxes = []string{"Stress", "Mood", "Energy", "Focus", "Health"}

type Line struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type RadarDataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

type Radar struct {
	Labels   []string       `json:"labels"`
	Datasets []RadarDataset `json:"datasets"`
}

type Data struct {
	Oxygen      Line       `json:"oxygen"`
	Temperature Line       `json:"temperature"`
	Sleep       Line       `json:"sleep"`
	Food        float64    `json:"food"`
	Power       [2]float64 `json:"power"`
	Wellness    *Radar     `json:"wellness,omitempty"`
}

type Board struct {
	mu          sync.RWMutex
	window      int
	oxygen      *Series
	temperature *Series
	sleep       *Series
	food        float64
	powerUsed   float64
}

func NewBoard(window int) *Board {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Board{
		window:      window,
		oxygen:      NewSeries(window),
		temperature: NewSeries(window),
		sleep:       NewSeries(window),
	}
}

func (b *Board) Window() int {
	return b.window
}

// Push records one sample labelled with the wall-clock time of the tick.
func (b *Board) Push(at time.Time, s model.Sample) {
	label := at.Format(labelLayout)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.oxygen.Push(label, s.Oxygen)
	b.temperature.Push(label, s.Temperature)
	b.sleep.Push(label, s.Sleep)
	b.food = s.Food
	b.powerUsed = s.PowerUsed
}

func (b *Board) Snapshot() Data {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Data{
		Oxygen:      Line{Labels: b.oxygen.Labels(), Values: b.oxygen.Values()},
		Temperature: Line{Labels: b.temperature.Labels(), Values: b.temperature.Values()},
		Sleep:       Line{Labels: b.sleep.Labels(), Values: b.sleep.Values()},
		Food:        b.food,
		Power:       [2]float64{b.powerUsed, 100 - b.powerUsed},
	}
}

func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.oxygen.Reset()
	b.temperature.Reset()
	b.sleep.Reset()
	b.food = 0
	b.powerUsed = 0
}

// WellnessRadar builds one dataset per member, in roster order, from the
// scores returned by current.
func WellnessRadar(members []string, current func(name string) model.WellnessScores) Radar {
	r := Radar{Labels: append([]string(nil), RadarAxes...)}
	for _, name := range members {
		s := current(name)
		r.Datasets = append(r.Datasets, RadarDataset{
			Label: name,
			Data:  []int{s.Stress, s.Mood, s.Energy, s.Focus, s.Health},
		})
	}
	return r
}
