package locations

import (
	"strings"
	"time"
)

// Location is a normalized place a session can reference. usage_count tracks
// the historical number of sessions that resolved to this record; it is only
// recomputed by the explicit recount migration.
type Location struct {
	LocationID  string    `gorm:"column:location_id;primaryKey;size:190;not null"`
	Name        string    `gorm:"column:name;size:320;not null;index"`
	FullAddress string    `gorm:"column:full_address;size:512;not null;index"`
	City        string    `gorm:"column:city;size:190"`
	State       string    `gorm:"column:state;size:190"`
	Country     string    `gorm:"column:country;size:190"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	IsFavorite  bool      `gorm:"column:is_favorite;not null;default:false"`
	IsPrivate   bool      `gorm:"column:is_private;not null;default:false"`
	Nickname    string    `gorm:"column:nickname;size:190"`
	UsageCount  int64     `gorm:"column:usage_count;not null;default:0"`
	LastUsedAt  time.Time `gorm:"column:last_used_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Location) TableName() string {
	return "locations"
}

// HasCoordinates reports whether both coordinates are present.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Parsed holds the comma-split components of a free-text location. The text
// before the first comma is the matching key, so the split order matters.
type Parsed struct {
	Name        string
	City        string
	State       string
	FullAddress string
}

// Parse splits free text on commas: segment 0 is the name, segment 1 the
// city, segment 2 the state. Fewer segments yield a degenerate record with
// only name and full address populated.
func Parse(freeText string) Parsed {
	trimmed := strings.TrimSpace(freeText)
	parsed := Parsed{FullAddress: trimmed}

	segments := strings.Split(trimmed, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	if len(segments) > 0 {
		parsed.Name = segments[0]
	}
	if len(segments) > 1 {
		parsed.City = segments[1]
	}
	if len(segments) > 2 {
		parsed.State = segments[2]
	}
	return parsed
}
