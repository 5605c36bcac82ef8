package models

import "time"

// Coordinate is a single geographic reading. Immutable once produced; a new
// reading replaces the old one.
type Coordinate struct {
	Latitude       float64  `json:"latitude" db:"latitude"`
	Longitude      float64  `json:"longitude" db:"longitude"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty" db:"accuracy_meters"`
}

// ResolvedLocation is a Coordinate enriched via reverse geocoding. PlaceName
// and the country fields stay nil when the geocoding sub-step fails; that is
// a degraded success, not an error.
type ResolvedLocation struct {
	Coordinate  Coordinate `json:"coordinate"`
	PlaceName   *string    `json:"place_name,omitempty"`
	CountryCode *string    `json:"country_code,omitempty"`
	CountryName *string    `json:"country_name,omitempty"`
	ResolvedAt  time.Time  `json:"resolved_at"`
	// Stale is set when the value came from the persisted last-known slot
	// rather than a fresh acquisition.
	Stale bool `json:"stale,omitempty"`
}

// LocationHistory records one successful resolution for a user.
type LocationHistory struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty" db:"accuracy"`
	PlaceName *string   `json:"place_name,omitempty" db:"place_name"`
	Source    string    `json:"source" db:"source"` // "device", "ip", "cached"
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// POIInteraction tracks a user's interaction with a place surfaced by search.
type POIInteraction struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	POIID           string    `json:"poi_id" db:"poi_id"`
	POIName         string    `json:"poi_name" db:"poi_name"`
	POICategory     string    `json:"poi_category" db:"poi_category"`
	InteractionType string    `json:"interaction_type" db:"interaction_type"` // "view", "click", "save"
	UserLatitude    float64   `json:"user_latitude" db:"user_latitude"`
	UserLongitude   float64   `json:"user_longitude" db:"user_longitude"`
	POILatitude     float64   `json:"poi_latitude" db:"poi_latitude"`
	POILongitude    float64   `json:"poi_longitude" db:"poi_longitude"`
	Distance        float64   `json:"distance" db:"distance"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// SavedPlace is the one piece of place state persisted across sessions, on an
// explicit user save.
type SavedPlace struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Icon      string    `json:"icon" db:"icon"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
