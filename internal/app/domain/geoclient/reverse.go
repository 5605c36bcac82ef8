package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

// ReverseGeocoder resolves a coordinate to address components via a
// Nominatim-style endpoint. Responses are cached aggressively since a given
// coordinate does not change its address.
type ReverseGeocoder struct {
	url    string
	client *http.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

// PlaceInfo is the display-oriented result of reverse geocoding.
type PlaceInfo struct {
	DisplayName string
	CountryCode string
	CountryName string
}

func NewReverseGeocoder(endpoint string, timeout time.Duration, logger *zap.Logger) *ReverseGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReverseGeocoder{
		url:    endpoint,
		client: newHTTPClient(timeout),
		cache:  gocache.New(24*time.Hour, time.Hour),
		logger: logger,
	}
}

type reverseResponse struct {
	Address struct {
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		City          string `json:"city"`
		Country       string `json:"country"`
		CountryCode   string `json:"country_code"`
	} `json:"address"`
}

// Reverse returns a human-readable place name and country for the coordinate.
// Callers treat any error here as a degraded success: the resolution keeps
// its coordinate and carries a nil place name.
func (g *ReverseGeocoder) Reverse(ctx context.Context, coord models.Coordinate) (*PlaceInfo, error) {
	key := fmt.Sprintf("%.4f:%.4f", coord.Latitude, coord.Longitude)
	if cached, ok := g.cache.Get(key); ok {
		info := cached.(PlaceInfo)
		return &info, nil
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", coord.Latitude))
	q.Set("lon", fmt.Sprintf("%f", coord.Longitude))
	q.Set("format", "jsonv2")
	q.Set("zoom", "14")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reverse geocode status %d", models.ErrNetworkError, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	info := buildPlaceInfo(body)
	g.cache.Set(key, info, gocache.DefaultExpiration)

	g.logger.Debug("Reverse geocode succeeded",
		zap.String("place", info.DisplayName),
		zap.String("country_code", info.CountryCode),
	)
	return &info, nil
}

// buildPlaceInfo prefers the most local named area: neighbourhood, then
// suburb, then town/village, then city, with the country appended.
func buildPlaceInfo(body reverseResponse) PlaceInfo {
	addr := body.Address
	locality := ""
	for _, candidate := range []string{addr.Neighbourhood, addr.Suburb, addr.Town, addr.Village, addr.City} {
		if candidate != "" {
			locality = candidate
			break
		}
	}

	display := locality
	if addr.Country != "" {
		if display != "" {
			display += ", " + addr.Country
		} else {
			display = addr.Country
		}
	}

	return PlaceInfo{
		DisplayName: display,
		CountryCode: strings.ToUpper(addr.CountryCode),
		CountryName: addr.Country,
	}
}
