package models

// PlaceCategory buckets a point of interest for display and dedup.
type PlaceCategory string

const (
	CategoryAttraction PlaceCategory = "attraction"
	CategoryFood       PlaceCategory = "food"
	CategoryLeisure    PlaceCategory = "leisure"
	CategoryService    PlaceCategory = "service"
	CategoryTransit    PlaceCategory = "transit"
)

// SearchMode selects which category set a nearby search requests.
type SearchMode string

const (
	ModeTourist    SearchMode = "tourist"
	ModeEssentials SearchMode = "essentials"
)

// Categories returns the category filters a mode queries, in the order the
// sub-queries are issued.
func (m SearchMode) Categories() []PlaceCategory {
	switch m {
	case ModeEssentials:
		return []PlaceCategory{CategoryFood, CategoryService, CategoryTransit}
	default:
		return []PlaceCategory{CategoryAttraction, CategoryFood, CategoryLeisure, CategoryTransit}
	}
}

// Place is a normalized point of interest. Lifetime is one search result set;
// it is not persisted unless the user explicitly saves it.
type Place struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Category       PlaceCategory `json:"category"`
	Coordinate     Coordinate    `json:"coordinate"`
	DistanceMeters float64       `json:"distance_meters"`
	Icon           string        `json:"icon"`
}
