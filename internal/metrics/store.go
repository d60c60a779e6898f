package metrics

import (
	"sync"
	"time"

	"habitat/internal/model"
)

type Snapshot struct {
	Sample     model.Sample        `json:"sample"`
	Alerts     []model.ActiveAlert `json:"alerts"`
	Suppressed []model.ActiveAlert `json:"suppressed,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Store keeps the most recent tick and the bay occupancy for readers that
// are not part of the tick loop.
type Store struct {
	mu     sync.RWMutex
	latest Snapshot
	ok     bool
	bays   []model.Bay
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Update(sample model.Sample, alerts, suppressed []model.ActiveAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Snapshot{
		Sample:     sample,
		Alerts:     append([]model.ActiveAlert(nil), alerts...),
		Suppressed: append([]model.ActiveAlert(nil), suppressed...),
		UpdatedAt:  time.Now().UTC(),
	}
	s.ok = true
}

func (s *Store) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}

func (s *Store) SetBays(bays []model.Bay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bays = append([]model.Bay(nil), bays...)
}

func (s *Store) Bays() []model.Bay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Bay(nil), s.bays...)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Snapshot{}
	s.ok = false
	s.bays = nil
}
