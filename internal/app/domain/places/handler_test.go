package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/domain"
	"github.com/wanderer-app/wanderer/internal/app/domain/location"
	"github.com/wanderer-app/wanderer/internal/app/models"
)

// mockLocationRepo implements location.Repository in memory.
type mockLocationRepo struct {
	mu              sync.Mutex
	locationHistory []models.LocationHistory
	poiInteractions []models.POIInteraction
	savedPlaces     []models.SavedPlace
}

func (m *mockLocationRepo) CreateLocationHistory(ctx context.Context, history *models.LocationHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history.ID = "test-id"
	m.locationHistory = append(m.locationHistory, *history)
	return nil
}

func (m *mockLocationRepo) GetLocationHistory(ctx context.Context, userID string, limit, offset int) ([]models.LocationHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LocationHistory(nil), m.locationHistory...), nil
}

func (m *mockLocationRepo) GetLocationHistoryByTimeRange(ctx context.Context, userID string, start, end time.Time) ([]models.LocationHistory, error) {
	return m.GetLocationHistory(ctx, userID, 0, 0)
}

func (m *mockLocationRepo) CreatePOIInteraction(ctx context.Context, interaction *models.POIInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	interaction.ID = "test-interaction-id"
	m.poiInteractions = append(m.poiInteractions, *interaction)
	return nil
}

func (m *mockLocationRepo) GetPOIInteractionStats(ctx context.Context, userID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]int)
	for _, interaction := range m.poiInteractions {
		stats[interaction.POICategory]++
	}
	return stats, nil
}

func (m *mockLocationRepo) SavePlace(ctx context.Context, place *models.SavedPlace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedPlaces = append(m.savedPlaces, *place)
	return nil
}

func (m *mockLocationRepo) ListSavedPlaces(ctx context.Context, userID string) ([]models.SavedPlace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SavedPlace(nil), m.savedPlaces...), nil
}

func (m *mockLocationRepo) DeleteSavedPlace(ctx context.Context, userID, placeID string) error {
	return nil
}

func (m *mockLocationRepo) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locationHistory)
}

func (m *mockLocationRepo) interactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.poiInteractions)
}

type testEnv struct {
	server  *httptest.Server
	handler *Handler
	repo    *mockLocationRepo
	store   *location.Store
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &mockLocationRepo{}
	store := location.NewStore("", nil)
	resolver := location.NewResolver(location.ResolverConfig{
		Device:  location.ClientPositionProvider{},
		Store:   store,
		History: repo,
	})
	svc := NewService(ServiceConfig{Primary: tokyoBackend()})
	handler := NewHandler(domain.NewBaseHandler(zap.NewNop()), svc, resolver, repo)

	router := gin.New()
	router.GET("/api/places/nearby", handler.Nearby)
	router.GET("/ws/nearby", handler.HandleWebSocket)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, handler: handler, repo: repo, store: store}
}

func TestNearbyEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/api/places/nearby?lat=35.6762&lon=139.6503&mode=tourist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// View interactions are recorded asynchronously.
	assert.Eventually(t, func() bool {
		return env.repo.interactionCount() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestNearbyEndpointRejectsBadCoordinates(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/api/places/nearby?lat=abc&lon=139.6503")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketLocationUpdate(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + env.server.URL[4:] + "/ws/nearby"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	update := locationUpdate{
		Latitude:  35.6762,
		Longitude: 139.6503,
		Radius:    2000,
		Mode:      "tourist",
	}
	require.NoError(t, ws.WriteJSON(update))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	// Each pushed position yields a resolved location followed by places.
	var first wsMessage
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "location", first.Type)
	require.NotNil(t, first.Location)
	assert.Equal(t, 35.6762, first.Location.Coordinate.Latitude)

	var second wsMessage
	require.NoError(t, ws.ReadJSON(&second))
	assert.Equal(t, "places", second.Type)
	assert.Len(t, second.Places, 5)

	// The streamed reading is committed as the last-known location.
	last := env.store.LastKnown()
	require.NotNil(t, last)
	assert.Equal(t, 35.6762, last.Coordinate.Latitude)

	// History is recorded asynchronously.
	assert.Eventually(t, func() bool {
		return env.repo.historyCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + env.server.URL[4:] + "/ws/nearby"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	update := locationUpdate{Latitude: 35.6762, Longitude: 139.6503, Mode: "tourist"}
	for i := 0; i < 40; i++ {
		require.NoError(t, ws.WriteJSON(update))
	}

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	sawRateLimit := false
	for i := 0; i < 200; i++ {
		var response wsMessage
		if err := ws.ReadJSON(&response); err != nil {
			break
		}
		if response.Type == "error" {
			sawRateLimit = true
			break
		}
	}
	assert.True(t, sawRateLimit, "expected the rate limiter to reject a burst of 40 updates")
}

func TestClientLimiterEvictedAfterLastConnection(t *testing.T) {
	env := setupTestServer(t)

	first := env.handler.acquireLimiter("user-1")
	second := env.handler.acquireLimiter("user-1")
	assert.Same(t, first, second)

	env.handler.releaseLimiter("user-1", first)
	env.handler.clientLimitersMu.Lock()
	remaining := len(env.handler.clientLimiters)
	env.handler.clientLimitersMu.Unlock()
	assert.Equal(t, 1, remaining, "limiter stays while a connection remains")

	env.handler.releaseLimiter("user-1", second)
	env.handler.clientLimitersMu.Lock()
	remaining = len(env.handler.clientLimiters)
	env.handler.clientLimitersMu.Unlock()
	assert.Equal(t, 0, remaining, "last disconnect drops the limiter")
}

func TestWebSocketReleasesLimiterOnDisconnect(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + env.server.URL[4:] + "/ws/nearby"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, ws.WriteJSON(locationUpdate{Latitude: 35.6762, Longitude: 139.6503}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var response wsMessage
	require.NoError(t, ws.ReadJSON(&response))
	ws.Close()

	assert.Eventually(t, func() bool {
		env.handler.clientLimitersMu.Lock()
		defer env.handler.clientLimitersMu.Unlock()
		return len(env.handler.clientLimiters) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMessageRateLimiterWindowSlides(t *testing.T) {
	limiter := &messageRateLimiter{maxMessages: 2, window: time.Minute}
	client := &clientLimit{}
	now := time.Now()

	assert.True(t, limiter.allow(client, now))
	assert.True(t, limiter.allow(client, now.Add(time.Second)))
	assert.False(t, limiter.allow(client, now.Add(2*time.Second)))

	// Outside the window the budget is restored.
	assert.True(t, limiter.allow(client, now.Add(2*time.Minute)))
}
