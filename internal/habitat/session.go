package habitat

import (
	"context"
	"encoding/json"
	"errors"

	"habitat/internal/crew"
	"habitat/internal/model"
	"habitat/internal/wellness"
)

// Login makes the first member whose name contains query the current user.
func (h *Habitat) Login(ctx context.Context, query string) (model.CrewMember, error) {
	found, ok := h.Crew.Find(query)
	if !ok {
		return model.CrewMember{}, crew.ErrNotFound
	}
	at := h.now()
	member, err := h.Crew.RecordLogin(ctx, found.Name, at)
	if err != nil {
		if errors.Is(err, crew.ErrNotFound) {
			return model.CrewMember{}, err
		}
		h.warn("crew stats not persisted", crew.StorageKey, err)
	}

	h.mu.Lock()
	prev := h.session
	h.session = &session{Name: member.Name, LoginAt: at}
	h.mu.Unlock()

	if prev != nil && prev.Name != member.Name {
		h.closeSession(ctx, prev)
	}
	h.persistSession(ctx)
	return member, nil
}

// Logout ends the session, adding its duration to the member's stats.
// It reports false when nobody was logged in.
func (h *Habitat) Logout(ctx context.Context) (model.CrewMember, bool) {
	h.mu.Lock()
	prev := h.session
	h.session = nil
	h.mu.Unlock()

	if prev == nil {
		return model.CrewMember{}, false
	}
	member := h.closeSession(ctx, prev)
	if h.store != nil {
		if err := h.store.Delete(ctx, SessionKey); err != nil {
			h.warn("session not cleared", SessionKey, err)
		}
	}
	return member, true
}

// CurrentUser returns the logged-in member as currently stored in the
// roster. A member deleted mid-session logs the session out.
func (h *Habitat) CurrentUser() (model.CrewMember, bool) {
	h.mu.RLock()
	s := h.session
	h.mu.RUnlock()
	if s == nil {
		return model.CrewMember{}, false
	}
	member, err := h.Crew.Get(s.Name)
	if err != nil {
		return model.CrewMember{}, false
	}
	return member, true
}

// Actor is the name attributed to log entries, or "" when nobody is
// logged in.
func (h *Habitat) Actor() string {
	if m, ok := h.CurrentUser(); ok {
		return m.Name
	}
	return ""
}

// Require returns the current user if they hold p.
func (h *Habitat) Require(p model.Privilege) (model.CrewMember, error) {
	member, ok := h.CurrentUser()
	if !ok {
		return model.CrewMember{}, ErrNotLoggedIn
	}
	if !member.Has(p) {
		return member, ErrForbidden
	}
	return member, nil
}

// UpsertMember adds or edits a crew member. Renaming a member carries
// their check-ins and, if they are logged in, the session to the new name.
func (h *Habitat) UpsertMember(ctx context.Context, original string, m model.CrewMember) (model.CrewMember, error) {
	var oldName string
	if original != "" {
		prev, err := h.Crew.Get(original)
		if err != nil {
			return model.CrewMember{}, err
		}
		oldName = prev.Name
	}
	member, err := h.Crew.Upsert(ctx, original, m)
	if member.Name == "" {
		return member, err
	}
	if err != nil {
		h.warn("crew roster not persisted", crew.StorageKey, err)
	}
	if oldName == "" || oldName == member.Name {
		return member, nil
	}
	if err := h.Wellness.Rename(ctx, oldName, member.Name); err != nil {
		h.warn("wellness data not persisted", wellness.StorageKey, err)
	}
	h.mu.Lock()
	renamed := h.session != nil && h.session.Name == oldName
	if renamed {
		h.session = &session{Name: member.Name, LoginAt: h.session.LoginAt}
	}
	h.mu.Unlock()
	if renamed {
		h.persistSession(ctx)
	}
	return member, nil
}

func (h *Habitat) closeSession(ctx context.Context, s *session) model.CrewMember {
	member, err := h.Crew.RecordLogout(ctx, s.Name, h.now().Sub(s.LoginAt))
	switch {
	case errors.Is(err, crew.ErrNotFound):
		return model.CrewMember{Name: s.Name}
	case err != nil:
		h.warn("crew stats not persisted", crew.StorageKey, err)
	}
	return member
}

func (h *Habitat) persistSession(ctx context.Context) {
	h.mu.RLock()
	s := h.session
	h.mu.RUnlock()
	if s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		h.warn("session not encoded", SessionKey, err)
		return
	}
	_ = h.save(ctx, SessionKey, data)
}

func (h *Habitat) loadSession(ctx context.Context) *session {
	data, ok := h.load(ctx, SessionKey)
	if !ok {
		return nil
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil || s.Name == "" {
		if err != nil {
			h.warn("session corrupt, starting logged out", SessionKey, err)
		}
		return nil
	}
	if _, err := h.Crew.Get(s.Name); err != nil {
		return nil
	}
	return &s
}
