package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
	"github.com/wanderer-app/wanderer/internal/pkg/geo"
)

// IPClient estimates a coordinate from the caller's IP address. Best effort,
// unauthenticated, bounded by a short timeout.
type IPClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewIPClient(url string, timeout time.Duration, logger *zap.Logger) *IPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPClient{
		url:    url,
		client: newHTTPClient(timeout),
		logger: logger,
	}
}

type ipResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Country   string  `json:"country_name"`
}

// Locate returns an approximate coordinate for the current network origin.
func (c *IPClient) Locate(ctx context.Context) (models.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("%w: ip lookup status %d", models.ErrNetworkError, resp.StatusCode)
	}

	var body ipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	if !geo.ValidateCoordinates(body.Latitude, body.Longitude) {
		return models.Coordinate{}, fmt.Errorf("%w: ip lookup returned no usable coordinate", models.ErrParse)
	}

	c.logger.Debug("IP geolocation succeeded",
		zap.Float64("latitude", body.Latitude),
		zap.Float64("longitude", body.Longitude),
		zap.String("city", body.City),
	)

	// IP estimates are city-level at best.
	accuracy := 25000.0
	return models.Coordinate{
		Latitude:       body.Latitude,
		Longitude:      body.Longitude,
		AccuracyMeters: &accuracy,
	}, nil
}
