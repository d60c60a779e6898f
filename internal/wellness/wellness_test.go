package wellness

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitat/internal/model"
	"habitat/internal/storage"
)

func TestCurrentDefaultsWithoutCheckIn(t *testing.T) {
	b := Open(context.Background(), storage.NewMemory(), nil)
	if got := b.Current("Lalith Dasa"); got != DefaultScores {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if h := b.History("Lalith Dasa", 10); len(h) != 0 {
		t.Fatalf("expected empty history, got %d", len(h))
	}
}

func TestSubmitAndHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	b := Open(ctx, store, nil)
	base := time.Date(2026, 6, 2, 7, 0, 0, 0, time.UTC)
	n := 0
	b.SetClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	})
	for i := 1; i <= 12; i++ {
		s := model.WellnessScores{Stress: i%10 + 1, Mood: 7, Energy: 6, Focus: 8, Health: 7}
		if _, err := b.Submit(ctx, "Tarushv Kosgi", s); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if got := b.Current("Tarushv Kosgi"); got.Stress != 3 {
		t.Fatalf("current should be the last submission, got %+v", got)
	}
	h := b.History("Tarushv Kosgi", HistoryView)
	if len(h) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(h))
	}
	if !h[0].Timestamp.After(h[1].Timestamp) {
		t.Fatalf("history should be newest first")
	}
	if all := b.History("Tarushv Kosgi", 0); len(all) != 12 {
		t.Fatalf("expected full history, got %d", len(all))
	}

	reloaded := Open(ctx, store, nil)
	if got := reloaded.Current("Tarushv Kosgi"); got.Stress != 3 {
		t.Fatalf("check-ins not persisted: %+v", got)
	}
}

func TestSubmitValidation(t *testing.T) {
	b := Open(context.Background(), nil, nil)
	bad := model.WellnessScores{Stress: 0, Mood: 7, Energy: 6, Focus: 8, Health: 11}
	if _, err := b.Submit(context.Background(), "Abhinav Boora", bad); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := b.Submit(context.Background(), " ", DefaultScores); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
}

func TestOpenCorruptStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_ = store.Save(ctx, StorageKey, []byte("[1,2"))
	b := Open(ctx, store, nil)
	if got := b.Current("Dheeraj Chennaboina"); got != DefaultScores {
		t.Fatalf("expected defaults after corrupt load, got %+v", got)
	}
}

func TestRenameMovesRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	b := Open(ctx, store, nil)
	scores := model.WellnessScores{Stress: 2, Mood: 9, Energy: 8, Focus: 7, Health: 9}
	if _, err := b.Submit(ctx, "Lalith Dasa", scores); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := b.Rename(ctx, "Lalith Dasa", "Lalith Dasa-Rao"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := b.Current("Lalith Dasa"); got != DefaultScores {
		t.Fatalf("old name should fall back to defaults, got %+v", got)
	}

	reloaded := Open(ctx, store, nil)
	if got := reloaded.Current("Lalith Dasa-Rao"); got != scores {
		t.Fatalf("expected scores under the new name, got %+v", got)
	}
	h := reloaded.History("Lalith Dasa-Rao", 0)
	if len(h) != 1 || h[0].User != "Lalith Dasa-Rao" {
		t.Fatalf("unexpected history %+v", h)
	}
	if err := b.Rename(ctx, "Nobody", "Someone"); err != nil {
		t.Fatalf("renaming a member without check-ins should be a no-op: %v", err)
	}
}
