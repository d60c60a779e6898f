// Package wellness stores per-member check-ins: the latest scores and the
// full history, persisted under StorageKey as one object keyed by name.
package wellness

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

const (
	StorageKey  = "wellnessData"
	MinScore    = 1
	MaxScore    = 10
	HistoryView = 10
)

var (
	ErrOutOfRange = errors.New("wellness score out of range")
	ErrNoUser     = errors.New("check-in requires a crew member")
)

// DefaultScores are reported for members who have never checked in.
var DefaultScores = model.WellnessScores{Stress: 5, Mood: 7, Energy: 6, Focus: 8, Health: 7}

type Book struct {
	mu      sync.RWMutex
	store   storage.Store
	logger  *slog.Logger
	records map[string]*model.WellnessRecord
	now     func() time.Time
}

func Open(ctx context.Context, store storage.Store, logger *slog.Logger) *Book {
	b := &Book{
		store:   store,
		logger:  logger,
		records: make(map[string]*model.WellnessRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if store == nil {
		return b
	}
	data, err := store.Load(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && logger != nil {
			logger.Warn("wellness load failed, starting empty", "key", StorageKey, "err", err)
		}
		return b
	}
	var records map[string]*model.WellnessRecord
	if err := json.Unmarshal(data, &records); err != nil {
		if logger != nil {
			logger.Warn("wellness data corrupt, starting empty", "key", StorageKey, "err", err)
		}
		return b
	}
	for name, rec := range records {
		if rec != nil {
			b.records[name] = rec
		}
	}
	return b
}

func (b *Book) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func Validate(s model.WellnessScores) error {
	for _, v := range []int{s.Stress, s.Mood, s.Energy, s.Focus, s.Health} {
		if v < MinScore || v > MaxScore {
			return fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, MinScore, MaxScore)
		}
	}
	return nil
}

// Submit records a check-in for user. The in-memory record is updated even
// when persisting fails; the persistence error is returned.
func (b *Book) Submit(ctx context.Context, user string, scores model.WellnessScores) (model.CheckIn, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return model.CheckIn{}, ErrNoUser
	}
	if err := Validate(scores); err != nil {
		return model.CheckIn{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := model.CheckIn{WellnessScores: scores, Timestamp: b.now(), User: user}
	rec, ok := b.records[user]
	if !ok {
		rec = &model.WellnessRecord{}
		b.records[user] = rec
	}
	rec.Current = scores
	rec.History = append(rec.History, entry)
	return entry, b.persistLocked(ctx)
}

func (b *Book) Current(user string) model.WellnessScores {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rec, ok := b.records[user]; ok && len(rec.History) > 0 {
		return rec.Current
	}
	return DefaultScores
}

// History returns up to n check-ins, newest first. n <= 0 returns all.
func (b *Book) History(user string, n int) []model.CheckIn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[user]
	if !ok {
		return nil
	}
	total := len(rec.History)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]model.CheckIn, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, rec.History[i])
	}
	return out
}

// Rename moves from's check-ins to to, replacing any record already held
// under to. It is a no-op when from has no record.
func (b *Book) Rename(ctx context.Context, from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoUser
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[from]
	if !ok || from == to {
		return nil
	}
	for i := range rec.History {
		rec.History[i].User = to
	}
	delete(b.records, from)
	b.records[to] = rec
	return b.persistLocked(ctx)
}

func (b *Book) persistLocked(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	data, err := json.Marshal(b.records)
	if err != nil {
		return fmt.Errorf("encode wellness data: %w", err)
	}
	if err := b.store.Save(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("persist wellness data: %w", err)
	}
	return nil
}
