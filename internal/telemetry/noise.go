package telemetry

import (
	"math"
	"math/rand/v2"
)

// UniformSource yields draws on [0, 1).
type UniformSource interface {
	Float64() float64
}

// NormalSource yields independent standard-normal draws.
type NormalSource interface {
	Normal() float64
}

// BoxMuller converts pairs of uniform draws into standard normals.
type BoxMuller struct {
	src UniformSource
}

func NewBoxMuller(src UniformSource) *BoxMuller {
	return &BoxMuller{src: src}
}

// NewSeededNormal returns a Box-Muller source over a PCG generator. The same
// seed always produces the same sequence.
func NewSeededNormal(seed uint64) *BoxMuller {
	return NewBoxMuller(NewSeededUniform(seed))
}

// NewSeededUniform returns a PCG-backed uniform source.
func NewSeededUniform(seed uint64) UniformSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (b *BoxMuller) Normal() float64 {
	u := b.nonZero()
	v := b.nonZero()
	return math.Sqrt(-2.0*math.Log(u)) * math.Cos(2.0*math.Pi*v)
}

// nonZero re-draws until the uniform source returns something other than 0,
// keeping log(u) finite.
func (b *BoxMuller) nonZero() float64 {
	for {
		if u := b.src.Float64(); u != 0 {
			return u
		}
	}
}

// SequenceSource replays a fixed list of normal draws, cycling when exhausted.
type SequenceSource struct {
	values []float64
	pos    int
}

func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Normal() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}
