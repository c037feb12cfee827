package sessions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/locations"
	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	prefix string
	index  int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.index++
	return fmt.Sprintf("%s-%d", g.prefix, g.index), nil
}

func TestCreateRejectsMissingFieldsBeforeSideEffects(t *testing.T) {
	store, db := newTestStore(t)

	draft := validDraft()
	draft.StrainName = ""

	_, err := store.Create(context.Background(), draft)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Fields) != 1 || validation.Fields[0] != "strain_name" {
		t.Fatalf("unexpected field list %v", validation.Fields)
	}

	var locationCount int64
	if err := db.Model(&locations.Location{}).Count(&locationCount).Error; err != nil {
		t.Fatalf("failed to count locations: %v", err)
	}
	if locationCount != 0 {
		t.Fatalf("rejected create must not create a location, found %d", locationCount)
	}

	var sessionCount int64
	if err := db.Model(&Session{}).Count(&sessionCount).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if sessionCount != 0 {
		t.Fatalf("rejected create must not persist a session, found %d", sessionCount)
	}
}

func TestCreateListsAllMissingFields(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), Draft{})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	expected := []string{"date", "time", "location", "vessel_category", "vessel", "strain_name", "quantity"}
	if len(validation.Fields) != len(expected) {
		t.Fatalf("unexpected field list %v", validation.Fields)
	}
	for i, field := range expected {
		if validation.Fields[i] != field {
			t.Fatalf("field %d: want %q got %q", i, field, validation.Fields[i])
		}
	}
}

func TestCreateAppliesDefaultsAndResolvesLocation(t *testing.T) {
	store, db := newTestStore(t)

	created, err := store.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.SessionID == "" {
		t.Fatalf("expected generated id")
	}
	if !created.MyVessel || !created.MySubstance || !created.PurchasedLegally {
		t.Fatalf("provenance flags should default true: %#v", created)
	}
	if created.Kief || created.Concentrate || created.Lavender || created.UsedTobacco {
		t.Fatalf("additive flags should default false: %#v", created)
	}
	if created.AccessoryUsed != "N/A" {
		t.Fatalf("accessory should default to N/A, got %q", created.AccessoryUsed)
	}
	if created.LocationID == nil {
		t.Fatalf("expected resolved location id")
	}

	var location locations.Location
	if err := db.Where("location_id = ?", *created.LocationID).Take(&location).Error; err != nil {
		t.Fatalf("failed to load resolved location: %v", err)
	}
	if location.Name != "Dolores Park" || location.UsageCount != 1 {
		t.Fatalf("unexpected location %#v", location)
	}

	cached := store.Cached()
	if len(cached) != 1 || cached[0].SessionID != created.SessionID {
		t.Fatalf("expected created session at cache head")
	}
}

func TestCreateRejectsQuantityVesselMismatch(t *testing.T) {
	store, _ := newTestStore(t)

	draft := validDraft()
	draft.Vessel = "Joint"
	draft.Quantity = quantity.Value{Amount: 2, Unit: "bowl size", Type: quantity.TypeSizeCategory}

	if _, err := store.Create(context.Background(), draft); !errors.Is(err, quantity.ErrTypeMismatch) {
		t.Fatalf("expected quantity type mismatch, got %v", err)
	}
}

func TestCreateSkipsResolutionWhenLocationIDGiven(t *testing.T) {
	store, db := newTestStore(t)

	locationID := "loc-existing"
	draft := validDraft()
	draft.Location = ""
	draft.LocationID = &locationID

	created, err := store.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.LocationID == nil || *created.LocationID != locationID {
		t.Fatalf("expected supplied location id to be kept")
	}

	var locationCount int64
	if err := db.Model(&locations.Location{}).Count(&locationCount).Error; err != nil {
		t.Fatalf("failed to count locations: %v", err)
	}
	if locationCount != 0 {
		t.Fatalf("resolver should not run when location_id is supplied")
	}
}

func TestUpdateMergesFieldsAndRefreshesTimestamp(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	comments := "evening walk"
	strainType := "Hybrid"
	updated, err := store.Update(context.Background(), created.SessionID, Patch{
		Comments:   &comments,
		StrainType: &strainType,
		Companions: []string{"Alex", "Sam"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Comments != "evening walk" || updated.StrainType != "Hybrid" {
		t.Fatalf("patch not applied: %#v", updated)
	}
	if updated.WhoWith != "Alex; Sam" {
		t.Fatalf("unexpected who_with %q", updated.WhoWith)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at should advance")
	}
	if updated.StrainName != created.StrainName {
		t.Fatalf("unpatched fields must remain")
	}

	cached := store.Cached()
	if len(cached) != 1 || cached[0].Comments != "evening walk" {
		t.Fatalf("cache entry should be updated in place")
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Update(context.Background(), "missing", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReportsUnknownID(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.Delete(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to succeed")
	}
	if len(store.Cached()) != 0 {
		t.Fatalf("cache should drop deleted session")
	}

	deleted, err = store.Delete(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("expected false for unknown id")
	}
}

func TestListFiltersByInclusiveDateRange(t *testing.T) {
	store, _ := newTestStore(t)

	for _, date := range []string{"2024-01-14", "2024-01-16", "2024-01-18", "2024-01-20", "2024-01-22"} {
		draft := validDraft()
		draft.Date = date
		if _, err := store.Create(context.Background(), draft); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	matched, err := store.List(context.Background(), Filter{StartDate: "2024-01-16", EndDate: "2024-01-20"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matched) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(matched))
	}
	dates := map[string]bool{}
	for _, record := range matched {
		dates[record.Date] = true
	}
	for _, expected := range []string{"2024-01-16", "2024-01-18", "2024-01-20"} {
		if !dates[expected] {
			t.Fatalf("expected date %s in results", expected)
		}
	}
}

func TestListFiltersComposeWithAnd(t *testing.T) {
	store, _ := newTestStore(t)

	combos := []struct {
		strain string
		vessel string
	}{
		{strain: "Gelato", vessel: "Pipe"},
		{strain: "Gelato", vessel: "Joint"},
		{strain: "Blue Dream", vessel: "Pipe"},
	}
	for _, combo := range combos {
		draft := validDraft()
		draft.StrainName = combo.strain
		draft.Vessel = combo.vessel
		if combo.vessel == "Joint" {
			draft.Quantity = quantity.Value{Amount: 0.5, Unit: "g", Type: quantity.TypeDecimal}
		}
		if _, err := store.Create(context.Background(), draft); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	matched, err := store.List(context.Background(), Filter{Strain: "gela", Vessel: "pip"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected 1 session, got %d", len(matched))
	}
	if matched[0].StrainName != "Gelato" || matched[0].Vessel != "Pipe" {
		t.Fatalf("unexpected match %#v", matched[0])
	}
}

func TestListPaginates(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 0; i < 5; i++ {
		if _, err := store.Create(context.Background(), validDraft()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page, err := store.List(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(page))
	}

	all, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected full set without filters, got %d", len(all))
	}
	if all[0].SessionID != "sess-5" {
		t.Fatalf("expected most recent first, got %s", all[0].SessionID)
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	store, _ := newTestStore(t)

	var seen []ChangeKind
	unsubscribe := store.Subscribe(func(change Change) {
		seen = append(seen, change.Kind)
	})

	created, err := store.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Delete(context.Background(), created.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unsubscribe()
	if _, err := store.Create(context.Background(), validDraft()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 2 || seen[0] != ChangeCreated || seen[1] != ChangeDeleted {
		t.Fatalf("unexpected change sequence %v", seen)
	}
}

func TestRefreshLoadsExistingSessionsIntoCache(t *testing.T) {
	store, db := newTestStore(t)

	for i, sessionID := range []string{"preexisting-1", "preexisting-2"} {
		record := Session{
			SessionID:      sessionID,
			Date:           "2024-01-15",
			Time:           "20:30",
			LocationText:   "Dolores Park, San Francisco, CA",
			VesselCategory: "Glass",
			Vessel:         "Pipe",
			StrainName:     "Gelato",
			QuantityAmount: 2,
			QuantityUnit:   "bowl size",
			QuantityType:   "size_category",
			CreatedAt:      time.Unix(1600000000+int64(i), 0).UTC(),
			UpdatedAt:      time.Unix(1600000000+int64(i), 0).UTC(),
		}
		if err := db.Create(&record).Error; err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
	}

	if len(store.Cached()) != 0 {
		t.Fatalf("expected an empty cache before refresh, got %d entries", len(store.Cached()))
	}

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	cached := store.Cached()
	if len(cached) != 2 {
		t.Fatalf("expected 2 cached sessions after refresh, got %d", len(cached))
	}
	if cached[0].SessionID != "preexisting-2" || cached[1].SessionID != "preexisting-1" {
		t.Fatalf("expected most recent first, got %s, %s", cached[0].SessionID, cached[1].SessionID)
	}
}

func validDraft() Draft {
	return Draft{
		Date:           "2024-01-15",
		Time:           "20:30",
		Location:       "Dolores Park, San Francisco, CA",
		VesselCategory: "Glass",
		Vessel:         "Pipe",
		StrainName:     "Gelato",
		Quantity:       quantity.Value{Amount: 2, Unit: "bowl size", Type: quantity.TypeSizeCategory},
	}
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:sessions_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &locations.Location{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	tick := int64(0)
	clock := func() time.Time {
		tick++
		return time.Unix(1700000000+tick, 0).UTC()
	}

	resolver, err := locations.NewResolver(locations.ResolverConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{prefix: "loc"},
	})
	if err != nil {
		t.Fatalf("failed to construct resolver: %v", err)
	}

	store, err := NewStore(StoreConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{prefix: "sess"},
		Locations:  resolver,
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, db
}
