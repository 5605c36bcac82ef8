package places

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/wanderer-app/wanderer/internal/app/domain/geoclient"
	"github.com/wanderer-app/wanderer/internal/app/models"
	"github.com/wanderer-app/wanderer/internal/pkg/geo"
)

// genericLabels name a place when the provider ships no usable name tag.
var genericLabels = map[models.PlaceCategory]string{
	models.CategoryAttraction: "Attraction",
	models.CategoryFood:       "Food & Drink",
	models.CategoryLeisure:    "Leisure Spot",
	models.CategoryService:    "Local Service",
	models.CategoryTransit:    "Transit Stop",
}

// categoryIcons map a category, refined by provider tags, onto a display
// emoji.
var categoryIcons = map[models.PlaceCategory]string{
	models.CategoryAttraction: "🏛️",
	models.CategoryFood:       "🍽️",
	models.CategoryLeisure:    "🌳",
	models.CategoryService:    "🏪",
	models.CategoryTransit:    "🚉",
}

var tagIcons = map[string]string{
	"museum":      "🎨",
	"gallery":     "🖼️",
	"artwork":     "🗿",
	"viewpoint":   "🔭",
	"cafe":        "☕",
	"bar":         "🍺",
	"fast_food":   "🍔",
	"park":        "🌳",
	"garden":      "🌷",
	"playground":  "🛝",
	"fountain":    "⛲",
	"pharmacy":    "💊",
	"hospital":    "🏥",
	"bank":        "🏦",
	"atm":         "🏧",
	"police":      "🚓",
	"post_office": "📮",
	"supermarket": "🛒",
	"bus_stop":    "🚌",
	"bus_station": "🚌",
	"tram_stop":   "🚋",
}

var nameFolder = cases.Fold()

// displayName picks the place name with a deterministic fallback order: the
// untagged name, then English, then the remaining language-tagged alternates
// in sorted order, then a generic per-category label.
func displayName(names map[string]string, category models.PlaceCategory) string {
	if name := strings.TrimSpace(names["name"]); name != "" {
		return name
	}
	if name := strings.TrimSpace(names["name:en"]); name != "" {
		return name
	}

	keys := make([]string, 0, len(names))
	for k := range names {
		if strings.HasPrefix(k, "name:") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if name := strings.TrimSpace(names[k]); name != "" {
			return name
		}
	}
	return genericLabels[category]
}

// iconFor refines the category icon with finer-grained provider tags.
func iconFor(category models.PlaceCategory, tags map[string]string) string {
	for _, tag := range tags {
		if icon, ok := tagIcons[tag]; ok {
			return icon
		}
	}
	return categoryIcons[category]
}

// dedupeKey builds the composite duplicate-detection key: category, the
// coordinate rounded to about a meter, and the case-folded name.
func dedupeKey(category models.PlaceCategory, coord models.Coordinate, name string) string {
	lat, lon := geo.RoundForDedup(coord)
	return fmt.Sprintf("%s|%.5f|%.5f|%s", category, lat, lon, nameFolder.String(name))
}

// normalizeCategory turns one category's raw provider results into Places
// with distances measured from the query origin. Results with unusable
// coordinates are dropped.
func normalizeCategory(origin models.Coordinate, category models.PlaceCategory, raws []geoclient.RawPlace) []models.Place {
	out := make([]models.Place, 0, len(raws))
	for _, raw := range raws {
		if !geo.ValidateCoordinates(raw.Latitude, raw.Longitude) {
			continue
		}
		coord := models.Coordinate{Latitude: raw.Latitude, Longitude: raw.Longitude}
		out = append(out, models.Place{
			ID:             raw.SourceID,
			Name:           displayName(raw.Names, category),
			Category:       category,
			Coordinate:     coord,
			DistanceMeters: geo.Haversine(origin, coord),
			Icon:           iconFor(category, raw.Tags),
		})
	}
	return out
}

// dedupeAndRank collapses duplicates (first occurrence wins), sorts each
// category ascending by distance, truncates each category to maxPerCategory
// and returns the combined list sorted by distance.
func dedupeAndRank(places []models.Place, maxPerCategory int) []models.Place {
	seen := make(map[string]struct{}, len(places))
	byCategory := make(map[models.PlaceCategory][]models.Place)
	for _, p := range places {
		key := dedupeKey(p.Category, p.Coordinate, p.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	combined := make([]models.Place, 0, len(places))
	for _, group := range byCategory {
		sort.Slice(group, func(i, j int) bool {
			return group[i].DistanceMeters < group[j].DistanceMeters
		})
		if len(group) > maxPerCategory {
			group = group[:maxPerCategory]
		}
		combined = append(combined, group...)
	}

	sort.Slice(combined, func(i, j int) bool {
		return combined[i].DistanceMeters < combined[j].DistanceMeters
	})
	return combined
}
