package sessions

import (
	"context"
	"testing"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
)

func TestLatestStrainAutofillReturnsMostRecentMatch(t *testing.T) {
	store, _ := newTestStore(t)

	older := validDraft()
	older.StrainType = "Indica"
	thcOld := 18.0
	older.THCPercentage = &thcOld
	legal := false
	older.PurchasedLegally = &legal
	older.StatePurchased = "CA"
	if _, err := store.Create(context.Background(), older); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newer := validDraft()
	newer.StrainType = "Hybrid"
	thcNew := 22.5
	newer.THCPercentage = &thcNew
	newer.StatePurchased = "CO"
	if _, err := store.Create(context.Background(), newer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	autofill, err := store.LatestStrainAutofill(context.Background(), "Gelato", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if autofill == nil {
		t.Fatalf("expected autofill data")
	}
	if autofill.StrainType != "Hybrid" {
		t.Fatalf("expected most recent strain type, got %q", autofill.StrainType)
	}
	if autofill.THCPercentage == nil || *autofill.THCPercentage != 22.5 {
		t.Fatalf("unexpected thc percentage %v", autofill.THCPercentage)
	}
	if !autofill.PurchasedLegally || autofill.StatePurchased != "CO" {
		t.Fatalf("unexpected provenance %#v", autofill)
	}
}

func TestLatestStrainAutofillMatchIsCaseInsensitiveAndTrimmed(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Create(context.Background(), validDraft()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	autofill, err := store.LatestStrainAutofill(context.Background(), "  gelato ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if autofill == nil {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestLatestStrainAutofillVesselFilter(t *testing.T) {
	store, _ := newTestStore(t)

	pipeDraft := validDraft()
	pipeDraft.StrainType = "Indica"
	if _, err := store.Create(context.Background(), pipeDraft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jointDraft := validDraft()
	jointDraft.Vessel = "Joint"
	jointDraft.Quantity = quantity.Value{Amount: 0.5, Unit: "g", Type: quantity.TypeDecimal}
	jointDraft.StrainType = "Sativa"
	if _, err := store.Create(context.Background(), jointDraft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	autofill, err := store.LatestStrainAutofill(context.Background(), "Gelato", " joint ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if autofill == nil || autofill.StrainType != "Sativa" {
		t.Fatalf("expected vessel-filtered match, got %#v", autofill)
	}

	none, err := store.LatestStrainAutofill(context.Background(), "Gelato", "Bong")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil when no vessel match, got %#v", none)
	}
}

func TestLatestStrainAutofillNoMatchReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	autofill, err := store.LatestStrainAutofill(context.Background(), "Unknown Strain", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if autofill != nil {
		t.Fatalf("expected nil for unknown strain")
	}
}

func TestAutocompleteCountsGroupedValues(t *testing.T) {
	store, _ := newTestStore(t)

	drafts := []Draft{}
	for i := 0; i < 2; i++ {
		draft := validDraft()
		draft.Companions = []string{"Alex", "Sam"}
		drafts = append(drafts, draft)
	}
	blueDream := validDraft()
	blueDream.StrainName = "Blue Dream"
	blueDream.Companions = []string{"Alex"}
	drafts = append(drafts, blueDream)

	for _, draft := range drafts {
		if _, err := store.Create(context.Background(), draft); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sets, err := store.Autocomplete(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sets.Strains) != 2 {
		t.Fatalf("expected 2 strains, got %d", len(sets.Strains))
	}
	if sets.Strains[0].Value != "Gelato" || sets.Strains[0].Count != 2 {
		t.Fatalf("unexpected top strain %#v", sets.Strains[0])
	}

	if len(sets.Companions) != 2 {
		t.Fatalf("expected 2 companions, got %d", len(sets.Companions))
	}
	if sets.Companions[0].Value != "Alex" || sets.Companions[0].Count != 3 {
		t.Fatalf("unexpected top companion %#v", sets.Companions[0])
	}
	if sets.Companions[1].Value != "Sam" || sets.Companions[1].Count != 2 {
		t.Fatalf("unexpected companion %#v", sets.Companions[1])
	}
}
