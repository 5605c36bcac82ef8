package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

// OverpassClient queries OpenStreetMap POI data through the Overpass API.
// Mirrors are tried in the configured priority order; the first one that
// answers wins.
type OverpassClient struct {
	mirrors []string
	client  *http.Client
	logger  *zap.Logger
}

func NewOverpassClient(mirrors []string, logger *zap.Logger) *OverpassClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverpassClient{
		mirrors: mirrors,
		// Per-attempt deadlines come from the caller's context; the search
		// service owns the total budget.
		client: &http.Client{},
		logger: logger,
	}
}

func (c *OverpassClient) Name() string { return "overpass" }

type osmElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *osmCenter        `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type osmCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (e *osmElement) coords() (float64, float64) {
	if e.Lat != 0 || e.Lon != 0 {
		return e.Lat, e.Lon
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon
	}
	return 0, 0
}

type overpassResponse struct {
	Elements []osmElement `json:"elements"`
}

// categorySelectors maps a place category to the OSM tag filters queried for
// it. Each selector becomes one nwr clause in the Overpass query.
var categorySelectors = map[models.PlaceCategory][]string{
	models.CategoryAttraction: {
		`tourism~"attraction|museum|viewpoint|artwork|gallery"`,
		`historic~"monument|memorial|castle"`,
	},
	models.CategoryFood: {
		`amenity~"restaurant|cafe|fast_food|food_court|bar"`,
	},
	models.CategoryLeisure: {
		`leisure~"park|garden|playground"`,
		`amenity="fountain"`,
	},
	models.CategoryService: {
		`amenity~"pharmacy|hospital|bank|atm|police|post_office"`,
		`shop~"supermarket|convenience"`,
	},
	models.CategoryTransit: {
		`railway~"station|halt|tram_stop"`,
		`highway="bus_stop"`,
		`amenity~"bus_station|ferry_terminal"`,
	},
}

func buildOverpassQuery(origin models.Coordinate, radiusMeters int, category models.PlaceCategory) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:10];(")
	for _, selector := range categorySelectors[category] {
		fmt.Fprintf(&b, "nwr[%s](around:%d,%f,%f);", selector, radiusMeters, origin.Latitude, origin.Longitude)
	}
	b.WriteString(");out center 30;")
	return b.String()
}

// FetchCategory runs one category sub-query, failing over through the mirror
// list. It returns ErrNetworkError only after every mirror is exhausted.
func (c *OverpassClient) FetchCategory(ctx context.Context, origin models.Coordinate, radiusMeters int, category models.PlaceCategory) ([]RawPlace, error) {
	query := buildOverpassQuery(origin, radiusMeters, category)

	var lastErr error
	for _, mirror := range c.mirrors {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTimeout, ctx.Err())
		}

		places, err := c.fetchFromMirror(ctx, mirror, query, category)
		if err == nil {
			return places, nil
		}
		lastErr = err
		c.logger.Warn("Overpass mirror failed, trying next",
			zap.String("mirror", mirror),
			zap.String("category", string(category)),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: all overpass mirrors failed: %v", models.ErrNetworkError, lastErr)
}

func (c *OverpassClient) fetchFromMirror(ctx context.Context, mirror, query string, category models.PlaceCategory) ([]RawPlace, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mirror, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror status %d", resp.StatusCode)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	places := make([]RawPlace, 0, len(body.Elements))
	for _, el := range body.Elements {
		lat, lon := el.coords()
		if lat == 0 && lon == 0 {
			continue
		}
		names := make(map[string]string)
		for k, v := range el.Tags {
			if k == "name" || strings.HasPrefix(k, "name:") {
				names[k] = v
			}
		}
		places = append(places, RawPlace{
			SourceID:  el.Type + "/" + strconv.FormatInt(el.ID, 10),
			Latitude:  lat,
			Longitude: lon,
			Names:     names,
			Tags:      el.Tags,
		})
	}
	return places, nil
}
