package sessions

import (
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
)

// Record is the external wire form of a session, shared by the REST API,
// the export document and the local persistence file. Key order follows the
// struct declaration, so exports stay human-readable and diff-friendly.
// who_with keeps the legacy semicolon-joined form for compatibility.
type Record struct {
	ID               string         `json:"id"`
	Date             string         `json:"date"`
	Time             string         `json:"time"`
	Location         string         `json:"location"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	LocationID       *string        `json:"location_id,omitempty"`
	VesselCategory   string         `json:"vessel_category"`
	Vessel           string         `json:"vessel"`
	StrainName       string         `json:"strain_name"`
	StrainType       string         `json:"strain_type,omitempty"`
	THCPercentage    *float64       `json:"thc_percentage,omitempty"`
	Quantity         quantity.Value `json:"quantity"`
	MyVessel         bool           `json:"my_vessel"`
	MySubstance      bool           `json:"my_substance"`
	PurchasedLegally bool           `json:"purchased_legally"`
	StatePurchased   string         `json:"state_purchased,omitempty"`
	UsedTobacco      bool           `json:"used_tobacco"`
	TobaccoProduct   string         `json:"tobacco_product,omitempty"`
	Kief             bool           `json:"kief"`
	Concentrate      bool           `json:"concentrate"`
	Lavender         bool           `json:"lavender"`
	AccessoryUsed    string         `json:"accessory_used"`
	WhoWith          string         `json:"who_with,omitempty"`
	Comments         string         `json:"comments,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

// ToRecord converts a stored session into its wire form.
func ToRecord(s Session) Record {
	return Record{
		ID:               s.SessionID,
		Date:             s.Date,
		Time:             s.Time,
		Location:         s.LocationText,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		LocationID:       s.LocationID,
		VesselCategory:   s.VesselCategory,
		Vessel:           s.Vessel,
		StrainName:       s.StrainName,
		StrainType:       s.StrainType,
		THCPercentage:    s.THCPercentage,
		Quantity:         s.Quantity(),
		MyVessel:         s.MyVessel,
		MySubstance:      s.MySubstance,
		PurchasedLegally: s.PurchasedLegally,
		StatePurchased:   s.StatePurchased,
		UsedTobacco:      s.UsedTobacco,
		TobaccoProduct:   s.TobaccoProduct,
		Kief:             s.Kief,
		Concentrate:      s.Concentrate,
		Lavender:         s.Lavender,
		AccessoryUsed:    s.AccessoryUsed,
		WhoWith:          s.WhoWith,
		Comments:         s.Comments,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToRecords converts a session slice, preserving order.
func ToRecords(sessions []Session) []Record {
	records := make([]Record, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, ToRecord(s))
	}
	return records
}

// FromRecord converts a wire record back into the stored form. Timestamps
// that fail to parse become zero times rather than errors; the record itself
// remains usable.
func FromRecord(r Record) Session {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return Session{
		SessionID:        r.ID,
		Date:             r.Date,
		Time:             r.Time,
		LocationText:     r.Location,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		LocationID:       r.LocationID,
		VesselCategory:   r.VesselCategory,
		Vessel:           r.Vessel,
		StrainName:       r.StrainName,
		StrainType:       r.StrainType,
		THCPercentage:    r.THCPercentage,
		QuantityAmount:   r.Quantity.Amount,
		QuantityUnit:     r.Quantity.Unit,
		QuantityType:     string(r.Quantity.Type),
		MyVessel:         r.MyVessel,
		MySubstance:      r.MySubstance,
		PurchasedLegally: r.PurchasedLegally,
		StatePurchased:   r.StatePurchased,
		UsedTobacco:      r.UsedTobacco,
		TobaccoProduct:   r.TobaccoProduct,
		Kief:             r.Kief,
		Concentrate:      r.Concentrate,
		Lavender:         r.Lavender,
		AccessoryUsed:    r.AccessoryUsed,
		WhoWith:          r.WhoWith,
		Comments:         r.Comments,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}
