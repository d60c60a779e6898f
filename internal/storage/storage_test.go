package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"habitat/internal/config"
)

func TestSQLiteRoundTrip(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "habitat.db") + "?_pragma=busy_timeout(5000)"
	store, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := store.Load(ctx, "alertLog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, "alertLog", []byte(`[{"type":"food"}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "alertLog", []byte(`[{"type":"food"},{"type":"power"}]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Load(ctx, "alertLog")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `[{"type":"food"},{"type":"power"}]` {
		t.Fatalf("unexpected value %s", got)
	}
	if err := store.Delete(ctx, "alertLog"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "alertLog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "habitat.db")
	ctx := context.Background()
	first, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.Save(ctx, "commandLog", []byte(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer second.Close()
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if got, err := second.Load(ctx, "commandLog"); err != nil || string(got) != "[]" {
		t.Fatalf("expected persisted value, got %q err=%v", got, err)
	}
}

func TestPostgresSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := newPostgresFromDB(db)
	query := regexp.QuoteMeta(`INSERT INTO habitat_state (key, value, updated_at) VALUES ($1, $2::jsonb, $3)`)
	mock.ExpectExec(query).
		WithArgs("alertOverrides", `{"food":true}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Save(context.Background(), "alertOverrides", []byte(`{"food":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := newPostgresFromDB(db)
	query := regexp.QuoteMeta(`SELECT value::text FROM habitat_state WHERE key = $1`)
	mock.ExpectQuery(query).
		WithArgs("commandLog").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[]`))
	mock.ExpectQuery(query).
		WithArgs("alertLog").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	got, err := store.Load(context.Background(), "commandLog")
	if err != nil || string(got) != "[]" {
		t.Fatalf("load: %q %v", got, err)
	}
	if _, err := store.Load(context.Background(), "alertLog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewStoreDrivers(t *testing.T) {
	if _, err := NewStore(config.StorageConfig{Driver: "mongo"}); !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
	s, err := NewStore(config.StorageConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	ctx := context.Background()
	value := []byte(`{"a":1}`)
	_ = s.Save(ctx, "k", value)
	value[0] = 'x'
	got, _ := s.Load(ctx, "k")
	if string(got) != `{"a":1}` {
		t.Fatalf("memory store must copy values, got %s", got)
	}
}
