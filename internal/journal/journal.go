// Package journal keeps append-only logs that are written through to a
// storage.Store after every append.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"habitat/internal/storage"
)

const defaultLimit = 10000

type Log[T any] struct {
	mu     sync.RWMutex
	key    string
	store  storage.Store
	logger *slog.Logger
	buf    []T
	limit  int
}

// Open loads the log stored under key. A missing value starts an empty log; a
// value that does not decode is discarded with a warning.
func Open[T any](ctx context.Context, store storage.Store, key string, limit int, logger *slog.Logger) *Log[T] {
	if limit <= 0 {
		limit = defaultLimit
	}
	l := &Log[T]{key: key, store: store, logger: logger, limit: limit}
	if store == nil {
		return l
	}
	data, err := store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && logger != nil {
			logger.Warn("journal load failed, starting empty", "key", key, "err", err)
		}
		return l
	}
	var entries []T
	if err := json.Unmarshal(data, &entries); err != nil {
		if logger != nil {
			logger.Warn("journal corrupt, starting empty", "key", key, "err", err)
		}
		return l
	}
	l.buf = entries
	l.trim()
	return l
}

func (l *Log[T]) Key() string {
	return l.key
}

// Append adds entry and rewrites the full log before returning. On a storage
// error the entry stays in memory and the error is returned.
func (l *Log[T]) Append(ctx context.Context, entry T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, entry)
	l.trim()
	return l.persistLocked(ctx)
}

func (l *Log[T]) List(limit int) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.buf) {
		limit = len(l.buf)
	}
	out := make([]T, 0, limit)
	for i := len(l.buf) - limit; i < len(l.buf); i++ {
		out = append(out, l.buf[i])
	}
	return out
}

func (l *Log[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0)
	for _, e := range l.buf {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buf)
}

func (l *Log[T]) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = nil
	return l.persistLocked(ctx)
}

// SetLimit changes the retention cap, evicting the oldest entries if needed.
func (l *Log[T]) SetLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = defaultLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	if len(l.buf) <= limit {
		return nil
	}
	l.trim()
	return l.persistLocked(ctx)
}

func (l *Log[T]) trim() {
	if over := len(l.buf) - l.limit; over > 0 {
		l.buf = append(l.buf[:0:0], l.buf[over:]...)
	}
}

func (l *Log[T]) persistLocked(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	entries := l.buf
	if entries == nil {
		entries = []T{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}
	if err := l.store.Save(ctx, l.key, data); err != nil {
		return fmt.Errorf("persist %s: %w", l.key, err)
	}
	return nil
}
