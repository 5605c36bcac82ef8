package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

// TomTomClient is the alternate POI backend, used when the Overpass mirrors
// are exhausted and an API key is configured.
type TomTomClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

func NewTomTomClient(endpoint, apiKey string, logger *zap.Logger) *TomTomClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TomTomClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (c *TomTomClient) Name() string { return "tomtom" }

// Enabled reports whether the client is usable (a key is configured).
func (c *TomTomClient) Enabled() bool { return c.apiKey != "" }

// categorySets maps place categories to TomTom POI category set ids.
var categorySets = map[models.PlaceCategory]string{
	models.CategoryAttraction: "7376,9902,7317",
	models.CategoryFood:       "7315,9376",
	models.CategoryLeisure:    "9362,9357",
	models.CategoryService:    "7326,9663,7321",
	models.CategoryTransit:    "7380,9942",
}

type tomtomResponse struct {
	Results []struct {
		ID  string `json:"id"`
		POI struct {
			Name       string   `json:"name"`
			Categories []string `json:"categories"`
		} `json:"poi"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
	} `json:"results"`
}

// FetchCategory queries nearby POIs of one category.
func (c *TomTomClient) FetchCategory(ctx context.Context, origin models.Coordinate, radiusMeters int, category models.PlaceCategory) ([]RawPlace, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: tomtom backend not configured", models.ErrUnsupported)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("lat", fmt.Sprintf("%f", origin.Latitude))
	q.Set("lon", fmt.Sprintf("%f", origin.Longitude))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("categorySet", categorySets[category])
	q.Set("limit", "30")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tomtom status %d", models.ErrNetworkError, resp.StatusCode)
	}

	var body tomtomResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	places := make([]RawPlace, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Position.Lat == 0 && r.Position.Lon == 0 {
			continue
		}
		names := map[string]string{}
		if r.POI.Name != "" {
			names["name"] = r.POI.Name
		}
		tags := map[string]string{}
		if len(r.POI.Categories) > 0 {
			tags["tomtom:category"] = r.POI.Categories[0]
		}
		places = append(places, RawPlace{
			SourceID:  "tomtom/" + r.ID,
			Latitude:  r.Position.Lat,
			Longitude: r.Position.Lon,
			Names:     names,
			Tags:      tags,
		})
	}

	c.logger.Debug("TomTom search succeeded",
		zap.String("category", string(category)),
		zap.Int("results", len(places)),
	)
	return places, nil
}
