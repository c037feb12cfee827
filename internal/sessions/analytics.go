package sessions

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opAutofill     = "sessions.strain_autofill"
	opAutocomplete = "sessions.autocomplete"
)

// StrainAutofill carries the reusable attributes of the most recent session
// for a strain, used to prefill the entry form.
type StrainAutofill struct {
	StrainType       string   `json:"strain_type"`
	THCPercentage    *float64 `json:"thc_percentage"`
	PurchasedLegally bool     `json:"purchased_legally"`
	StatePurchased   string   `json:"state_purchased"`
}

// LatestStrainAutofill returns autofill data from the most recently created
// session whose strain name matches, case-insensitive and trimmed. A
// non-empty vessel restricts eligibility the same way. No match returns nil.
func (s *Store) LatestStrainAutofill(ctx context.Context, strain, vessel string) (*StrainAutofill, error) {
	key := strings.ToLower(strings.TrimSpace(strain))
	if key == "" {
		return nil, nil
	}

	query := s.db.WithContext(ctx).Model(&Session{}).
		Where("LOWER(TRIM(strain_name)) = ?", key)
	if trimmedVessel := strings.ToLower(strings.TrimSpace(vessel)); trimmedVessel != "" {
		query = query.Where("LOWER(TRIM(vessel)) = ?", trimmedVessel)
	}

	var record Session
	err := query.Order("created_at DESC").Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opAutofill, "query_failed", err, zap.String("strain", strain))
		return nil, newServiceError(opAutofill, "query_failed", err)
	}

	return &StrainAutofill{
		StrainType:       record.StrainType,
		THCPercentage:    record.THCPercentage,
		PurchasedLegally: record.PurchasedLegally,
		StatePurchased:   record.StatePurchased,
	}, nil
}

// ValueCount pairs a distinct value with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// AutocompleteSets holds count-grouped values for the entry form's
// suggestion lists and the analytics dashboard.
type AutocompleteSets struct {
	Strains     []ValueCount `json:"strains"`
	Vessels     []ValueCount `json:"vessels"`
	Accessories []ValueCount `json:"accessories"`
	Companions  []ValueCount `json:"companions"`
}

// Autocomplete returns distinct strains, vessels, accessories and companions
// with usage counts, most frequent first. Companion counts split the stored
// semicolon-joined who_with values.
func (s *Store) Autocomplete(ctx context.Context) (AutocompleteSets, error) {
	sets := AutocompleteSets{}

	var err error
	if sets.Strains, err = s.groupedCounts(ctx, "strain_name"); err != nil {
		return AutocompleteSets{}, err
	}
	if sets.Vessels, err = s.groupedCounts(ctx, "vessel"); err != nil {
		return AutocompleteSets{}, err
	}
	if sets.Accessories, err = s.groupedCounts(ctx, "accessory_used"); err != nil {
		return AutocompleteSets{}, err
	}

	var joined []string
	if err := s.db.WithContext(ctx).Model(&Session{}).
		Where("who_with <> ''").
		Pluck("who_with", &joined).Error; err != nil {
		s.logError(opAutocomplete, "companions_query_failed", err)
		return AutocompleteSets{}, newServiceError(opAutocomplete, "companions_query_failed", err)
	}

	counts := map[string]int64{}
	order := []string{}
	for _, value := range joined {
		for _, name := range SplitCompanions(value) {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}
	companions := make([]ValueCount, 0, len(order))
	for _, name := range order {
		companions = append(companions, ValueCount{Value: name, Count: counts[name]})
	}
	sort.SliceStable(companions, func(i, j int) bool {
		return companions[i].Count > companions[j].Count
	})
	sets.Companions = companions

	return sets, nil
}

func (s *Store) groupedCounts(ctx context.Context, column string) ([]ValueCount, error) {
	var rows []ValueCount
	err := s.db.WithContext(ctx).Model(&Session{}).
		Select(column+" AS value, COUNT(*) AS count").
		Where(column+" <> ''").
		Group(column).
		Order("count DESC, value ASC").
		Scan(&rows).Error
	if err != nil {
		s.logError(opAutocomplete, "group_query_failed", err, zap.String("column", column))
		return nil, newServiceError(opAutocomplete, "group_query_failed", err)
	}
	return rows, nil
}
