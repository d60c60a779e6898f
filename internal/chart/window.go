package chart

type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series keeps the most recent limit points. Evicted points are dropped from
// the front and the backing slice is compacted once half of it is stale.
type Series struct {
	limit  int
	points []Point
	head   int
}

func NewSeries(limit int) *Series {
	if limit <= 0 {
		limit = DefaultWindow
	}
	return &Series{limit: limit, points: make([]Point, 0, limit+1)}
}

func (s *Series) Push(label string, value float64) {
	s.points = append(s.points, Point{Label: label, Value: value})
	for len(s.points)-s.head > s.limit {
		s.head++
	}
	if s.head > 0 && s.head*2 >= len(s.points) {
		s.points = append(make([]Point, 0, s.limit+1), s.points[s.head:]...)
		s.head = 0
	}
}

func (s *Series) Len() int {
	return len(s.points) - s.head
}

func (s *Series) Points() []Point {
	return append([]Point(nil), s.points[s.head:]...)
}

func (s *Series) Labels() []string {
	out := make([]string, 0, s.Len())
	for _, p := range s.points[s.head:] {
		out = append(out, p.Label)
	}
	return out
}

func (s *Series) Values() []float64 {
	out := make([]float64, 0, s.Len())
	for _, p := range s.points[s.head:] {
		out = append(out, p.Value)
	}
	return out
}

func (s *Series) Reset() {
	s.points = s.points[:0]
	s.head = 0
}
