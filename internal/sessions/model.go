package sessions

import (
	"strings"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
)

// Session is a single recorded consumption event. Date and time stay
// separate string fields because the source data predates a unified
// timestamp and display logic formats them independently. A session may
// carry both the legacy free-text location and a resolved location_id while
// records are mid-migration.
type Session struct {
	SessionID        string    `gorm:"column:session_id;primaryKey;size:190;not null"`
	Date             string    `gorm:"column:date;size:10;not null;index"`
	Time             string    `gorm:"column:time;size:8;not null"`
	LocationText     string    `gorm:"column:location;size:512"`
	Latitude         *float64  `gorm:"column:latitude"`
	Longitude        *float64  `gorm:"column:longitude"`
	LocationID       *string   `gorm:"column:location_id;size:190;index"`
	VesselCategory   string    `gorm:"column:vessel_category;size:190;not null"`
	Vessel           string    `gorm:"column:vessel;size:190;not null"`
	StrainName       string    `gorm:"column:strain_name;size:190;not null;index"`
	StrainType       string    `gorm:"column:strain_type;size:64"`
	THCPercentage    *float64  `gorm:"column:thc_percentage"`
	QuantityAmount   float64   `gorm:"column:quantity_amount;not null"`
	QuantityUnit     string    `gorm:"column:quantity_unit;size:64;not null"`
	QuantityType     string    `gorm:"column:quantity_type;size:32;not null"`
	MyVessel         bool      `gorm:"column:my_vessel;not null;default:true"`
	MySubstance      bool      `gorm:"column:my_substance;not null;default:true"`
	PurchasedLegally bool      `gorm:"column:purchased_legally;not null;default:true"`
	StatePurchased   string    `gorm:"column:state_purchased;size:64"`
	UsedTobacco      bool      `gorm:"column:used_tobacco;not null;default:false"`
	TobaccoProduct   string    `gorm:"column:tobacco_product;size:190"`
	Kief             bool      `gorm:"column:kief;not null;default:false"`
	Concentrate      bool      `gorm:"column:concentrate;not null;default:false"`
	Lavender         bool      `gorm:"column:lavender;not null;default:false"`
	AccessoryUsed    string    `gorm:"column:accessory_used;size:190;not null;default:'N/A'"`
	WhoWith          string    `gorm:"column:who_with;size:512"`
	Comments         string    `gorm:"column:comments;type:text"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "consumption_sessions"
}

// Quantity returns the stored wire triple.
func (s Session) Quantity() quantity.Value {
	return quantity.Value{
		Amount: s.QuantityAmount,
		Unit:   s.QuantityUnit,
		Type:   quantity.Type(s.QuantityType),
	}
}

// Companions returns the ordered companion names decoded from the stored
// semicolon-joined who_with column.
func (s Session) Companions() []string {
	return SplitCompanions(s.WhoWith)
}

// SplitCompanions decodes a semicolon-joined companion string: split on ';',
// trim each segment, drop empties.
func SplitCompanions(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	segments := strings.Split(joined, ";")
	names := make([]string, 0, len(segments))
	for _, segment := range segments {
		name := strings.TrimSpace(segment)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// JoinCompanions encodes companion names into the legacy semicolon-joined
// form used by the stored column and export formats.
func JoinCompanions(names []string) string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "; ")
}

// ParseTobacco maps the legacy ambiguous tobacco field onto the explicit
// pair used here: boolean-ish strings set only the flag, any other non-empty
// string sets the flag and names the product.
func ParseTobacco(raw string) (used bool, product string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, ""
	}
	switch strings.ToLower(trimmed) {
	case "false", "no", "0", "none":
		return false, ""
	case "true", "yes", "1":
		return true, ""
	default:
		return true, trimmed
	}
}
