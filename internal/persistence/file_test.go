package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

type staticIDGenerator struct {
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("rec-%d", g.next), nil
}

func newFileBackend(t *testing.T) *FileBackend {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sessions.json")
	tick := int64(0)
	backend, err := NewFileBackend(FileBackendConfig{
		Path: path,
		Clock: func() time.Time {
			tick++
			return time.Unix(1700000000+tick, 0).UTC()
		},
		IDProvider: &staticIDGenerator{},
	})
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	return backend
}

func recordFixture(date, strain string) sessions.Record {
	return sessions.Record{
		Date:           date,
		Time:           "21:00",
		Location:       "Dolores Park, San Francisco, CA",
		VesselCategory: "Glass",
		Vessel:         "Pipe",
		StrainName:     strain,
		Quantity:       quantity.Value{Amount: 2, Unit: "bowl size", Type: quantity.TypeSizeCategory},
	}
}

func TestFileBackendCreateAssignsIDAndTimestamps(t *testing.T) {
	backend := newFileBackend(t)
	ctx := context.Background()

	created, err := backend.Create(ctx, recordFixture("2026-08-01", "Gelato"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}
	if created.CreatedAt == "" || created.UpdatedAt == "" {
		t.Fatalf("expected timestamps, got created_at=%q updated_at=%q", created.CreatedAt, created.UpdatedAt)
	}

	records, err := backend.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(records) != 1 || records[0].ID != created.ID {
		t.Fatalf("expected the created record back, got %+v", records)
	}
}

func TestFileBackendCreatePrependsMostRecentFirst(t *testing.T) {
	backend := newFileBackend(t)
	ctx := context.Background()

	first, _ := backend.Create(ctx, recordFixture("2026-08-01", "Gelato"))
	second, _ := backend.Create(ctx, recordFixture("2026-08-02", "Blue Dream"))

	records, err := backend.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != second.ID || records[1].ID != first.ID {
		t.Fatalf("expected newest first, got order %s, %s", records[0].ID, records[1].ID)
	}
}

func TestFileBackendMissingFileReadsEmpty(t *testing.T) {
	backend := newFileBackend(t)

	records, err := backend.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestFileBackendGetFiltered(t *testing.T) {
	backend := newFileBackend(t)
	ctx := context.Background()

	dates := []string{"2026-08-01", "2026-08-14", "2026-08-16", "2026-08-18", "2026-08-20"}
	for _, date := range dates {
		if _, err := backend.Create(ctx, recordFixture(date, "Gelato")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	records, err := backend.GetFiltered(ctx, sessions.Filter{StartDate: "2026-08-14", EndDate: "2026-08-18"})
	if err != nil {
		t.Fatalf("GetFiltered returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records in the inclusive range, got %d", len(records))
	}

	records, err = backend.GetFiltered(ctx, sessions.Filter{Strain: "gel"})
	if err != nil {
		t.Fatalf("GetFiltered returned error: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected case-insensitive substring match on all 5, got %d", len(records))
	}

	records, err = backend.GetFiltered(ctx, sessions.Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("GetFiltered returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected limit 2 after offset 1, got %d", len(records))
	}
}

func TestFileBackendUpdateAndDelete(t *testing.T) {
	backend := newFileBackend(t)
	ctx := context.Background()

	created, _ := backend.Create(ctx, recordFixture("2026-08-01", "Gelato"))

	changed := created
	changed.StrainName = "Blue Dream"
	updated, err := backend.Update(ctx, created.ID, changed)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.StrainName != "Blue Dream" {
		t.Fatalf("expected updated strain, got %q", updated.StrainName)
	}
	if updated.CreatedAt != created.CreatedAt {
		t.Fatal("expected created_at preserved through update")
	}

	if _, err := backend.Update(ctx, "missing", changed); err != ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	deleted, err := backend.Delete(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = backend.Delete(ctx, created.ID)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got deleted=%v err=%v", deleted, err)
	}
}

func TestFileBackendSaveIsAtomic(t *testing.T) {
	backend := newFileBackend(t)
	ctx := context.Background()

	if _, err := backend.Create(ctx, recordFixture("2026-08-01", "Gelato")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(backend.path))
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the data file after save, found %d entries", len(entries))
	}
}
