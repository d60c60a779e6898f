// Package crew owns the single crew roster: members, their privileges and
// per-member session statistics. Every mutation rewrites the roster under
// StorageKey.
package crew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"habitat/internal/model"
	"habitat/internal/storage"
)

const StorageKey = "crewMembers"

var (
	ErrNotFound  = errors.New("crew member not found")
	ErrDuplicate = errors.New("crew member already exists")
	ErrInvalid   = errors.New("invalid crew member")
)

func DefaultMembers() []model.CrewMember {
	return []model.CrewMember{
		{
			Name:       "Dheeraj Chennaboina",
			Role:       "Commander",
			Privileges: []model.Privilege{model.PrivilegeRead, model.PrivilegeWrite, model.PrivilegeAdmin},
			Alerts:     []string{"Mission briefing at 0800", "Hydration reminder"},
		},
		{
			Name:       "Tarushv Kosgi",
			Role:       "Engineer",
			Privileges: []model.Privilege{model.PrivilegeRead, model.PrivilegeWrite, model.PrivilegeResearch, model.PrivilegeAdmin},
			Alerts:     []string{"System maintenance check", "Sleep cycle alert"},
		},
		{
			Name:       "Abhinav Boora",
			Role:       "Scientist",
			Privileges: []model.Privilege{model.PrivilegeRead, model.PrivilegeResearch, model.PrivilegeMedical},
			Alerts:     []string{"Sample collection due", "Data analysis pending"},
		},
		{
			Name:       "Lalith Dasa",
			Role:       "Medic",
			Privileges: []model.Privilege{model.PrivilegeRead, model.PrivilegeMedical, model.PrivilegeAdmin},
			Alerts:     []string{"Health check scheduled", "Medication reminder"},
		},
	}
}

type Roster struct {
	mu      sync.RWMutex
	store   storage.Store
	logger  *slog.Logger
	members []model.CrewMember
}

// Open loads the roster. A missing or unreadable value seeds the default
// crew and persists it.
func Open(ctx context.Context, store storage.Store, logger *slog.Logger) (*Roster, error) {
	r := &Roster{store: store, logger: logger}
	if store == nil {
		r.members = DefaultMembers()
		return r, nil
	}
	data, err := store.Load(ctx, StorageKey)
	switch {
	case err == nil:
		var members []model.CrewMember
		if jerr := json.Unmarshal(data, &members); jerr == nil {
			r.members = members
			return r, nil
		} else if logger != nil {
			logger.Warn("crew roster corrupt, reseeding", "key", StorageKey, "err", jerr)
		}
	case !errors.Is(err, storage.ErrNotFound):
		if logger != nil {
			logger.Warn("crew roster load failed, reseeding", "key", StorageKey, "err", err)
		}
	}
	r.members = DefaultMembers()
	if err := r.persistLocked(ctx); err != nil {
		return r, err
	}
	return r, nil
}

func (r *Roster) List() []model.CrewMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.CrewMember, len(r.members))
	for i, m := range r.members {
		out[i] = cloneMember(m)
	}
	return out
}

func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	for i, m := range r.members {
		out[i] = m.Name
	}
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// At returns the member at index i modulo the roster size.
func (r *Roster) At(i int) (model.CrewMember, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.members) == 0 {
		return model.CrewMember{}, false
	}
	if i < 0 {
		i = -i
	}
	return cloneMember(r.members[i%len(r.members)]), true
}

// Get matches the full name, ignoring case.
func (r *Roster) Get(name string) (model.CrewMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexLocked(name)
	if idx < 0 {
		return model.CrewMember{}, ErrNotFound
	}
	return cloneMember(r.members[idx]), nil
}

// Find returns the first member whose name contains query, ignoring case.
func (r *Roster) Find(query string) (model.CrewMember, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return model.CrewMember{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if strings.Contains(strings.ToLower(m.Name), q) {
			return cloneMember(m), true
		}
	}
	return model.CrewMember{}, false
}

// Upsert adds m, or replaces the member named original when it is set.
// Editing keeps the existing stats.
func (r *Roster) Upsert(ctx context.Context, original string, m model.CrewMember) (model.CrewMember, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Role = strings.TrimSpace(m.Role)
	if m.Name == "" || m.Role == "" {
		return model.CrewMember{}, fmt.Errorf("%w: name and role are required", ErrInvalid)
	}
	privs, err := NormalizePrivileges(m.Privileges)
	if err != nil {
		return model.CrewMember{}, err
	}
	m.Privileges = privs
	m.Alerts = normalizeReminders(m.Alerts)

	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.indexLocked(m.Name)
	if original == "" {
		if existing >= 0 {
			return model.CrewMember{}, ErrDuplicate
		}
		m.Stats = model.CrewStats{}
		r.members = append(r.members, m)
	} else {
		idx := r.indexLocked(original)
		if idx < 0 {
			return model.CrewMember{}, ErrNotFound
		}
		if existing >= 0 && existing != idx {
			return model.CrewMember{}, ErrDuplicate
		}
		m.Stats = r.members[idx].Stats
		r.members[idx] = m
	}
	return cloneMember(m), r.persistLocked(ctx)
}

func (r *Roster) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(name)
	if idx < 0 {
		return ErrNotFound
	}
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	return r.persistLocked(ctx)
}

func (r *Roster) RecordLogin(ctx context.Context, name string, at time.Time) (model.CrewMember, error) {
	return r.mutate(ctx, name, func(s *model.CrewStats) {
		s.LoginCount++
		t := at
		s.LastLogin = &t
	})
}

// RecordLogout adds the session length, in milliseconds, to the member's
// total login time.
func (r *Roster) RecordLogout(ctx context.Context, name string, session time.Duration) (model.CrewMember, error) {
	if session < 0 {
		session = 0
	}
	return r.mutate(ctx, name, func(s *model.CrewStats) {
		s.TotalLoginTime += session.Milliseconds()
	})
}

func (r *Roster) RecordCommand(ctx context.Context, name string) (model.CrewMember, error) {
	return r.mutate(ctx, name, func(s *model.CrewStats) {
		s.CommandsExecuted++
	})
}

func (r *Roster) mutate(ctx context.Context, name string, fn func(*model.CrewStats)) (model.CrewMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(name)
	if idx < 0 {
		return model.CrewMember{}, ErrNotFound
	}
	fn(&r.members[idx].Stats)
	return cloneMember(r.members[idx]), r.persistLocked(ctx)
}

func (r *Roster) indexLocked(name string) int {
	name = strings.TrimSpace(name)
	for i, m := range r.members {
		if strings.EqualFold(m.Name, name) {
			return i
		}
	}
	return -1
}

func (r *Roster) persistLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	data, err := json.Marshal(r.members)
	if err != nil {
		return fmt.Errorf("encode crew roster: %w", err)
	}
	if err := r.store.Save(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("persist crew roster: %w", err)
	}
	return nil
}

func cloneMember(m model.CrewMember) model.CrewMember {
	m.Privileges = append([]model.Privilege(nil), m.Privileges...)
	m.Alerts = append([]string(nil), m.Alerts...)
	if m.Stats.LastLogin != nil {
		t := *m.Stats.LastLogin
		m.Stats.LastLogin = &t
	}
	return m
}
