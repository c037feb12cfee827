package feedback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	index int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.index++
	return fmt.Sprintf("fb-%d", g.index), nil
}

func TestCreateRejectsBlankContent(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.Create(context.Background(), "   ", nil); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestCreateAndListNewestFirst(t *testing.T) {
	service, _ := newTestService(t)

	first, err := service.Create(context.Background(), "first note", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Create(context.Background(), "second note", []string{"https://img/1.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].FeedbackID != second.FeedbackID || entries[1].FeedbackID != first.FeedbackID {
		t.Fatalf("expected newest first, got %s then %s", entries[0].FeedbackID, entries[1].FeedbackID)
	}
	if len(entries[0].Images) != 1 || entries[0].Images[0] != "https://img/1.png" {
		t.Fatalf("unexpected images %v", entries[0].Images)
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.Update(context.Background(), "missing", "text", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReplacesContent(t *testing.T) {
	service, _ := newTestService(t)

	entry, err := service.Create(context.Background(), "draft", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := service.Update(context.Background(), entry.FeedbackID, "  revised  ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Content != "revised" {
		t.Fatalf("unexpected content %q", updated.Content)
	}
	if !updated.UpdatedAt.After(entry.UpdatedAt) {
		t.Fatalf("updated_at should advance")
	}
}

func TestDeleteReportsUnknownID(t *testing.T) {
	service, _ := newTestService(t)

	entry, err := service.Create(context.Background(), "to remove", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := service.Delete(context.Background(), entry.FeedbackID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to succeed")
	}

	deleted, err = service.Delete(context.Background(), entry.FeedbackID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("expected false for unknown id")
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:feedback_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	tick := int64(0)
	clock := func() time.Time {
		tick++
		return time.Unix(1700000000+tick, 0).UTC()
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}
