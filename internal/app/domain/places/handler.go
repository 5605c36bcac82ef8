package places

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/domain"
	"github.com/wanderer-app/wanderer/internal/app/domain/location"
	"github.com/wanderer-app/wanderer/internal/app/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the deployed frontend origin once it is fixed.
		return true
	},
}

// messageRateLimiter bounds how fast a websocket client may push location
// updates.
type messageRateLimiter struct {
	maxMessages int
	window      time.Duration
}

// clientLimit tracks recent requests for one client. refs counts the open
// connections sharing it, guarded by the handler's clientLimitersMu.
type clientLimit struct {
	mu       sync.Mutex
	requests []time.Time
	refs     int
}

func (l *messageRateLimiter) allow(c *clientLimit, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := c.requests[:0]
	for _, t := range c.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.requests = kept

	if len(c.requests) >= l.maxMessages {
		return false
	}
	c.requests = append(c.requests, now)
	return true
}

type Handler struct {
	*domain.BaseHandler
	service      *Service
	resolver     *location.Resolver
	locationRepo location.Repository

	connections   map[*websocket.Conn]bool
	connectionsMu sync.RWMutex

	messageLimiter   *messageRateLimiter
	clientLimiters   map[string]*clientLimit
	clientLimitersMu sync.Mutex
}

func NewHandler(base *domain.BaseHandler, service *Service, resolver *location.Resolver, locationRepo location.Repository) *Handler {
	return &Handler{
		BaseHandler:  base,
		service:      service,
		resolver:     resolver,
		locationRepo: locationRepo,
		connections:  make(map[*websocket.Conn]bool),
		messageLimiter: &messageRateLimiter{
			maxMessages: 30,
			window:      time.Minute,
		},
		clientLimiters: make(map[string]*clientLimit),
	}
}

// acquireLimiter returns the shared limiter for a user, creating it for the
// first connection.
func (h *Handler) acquireLimiter(userID string) *clientLimit {
	h.clientLimitersMu.Lock()
	defer h.clientLimitersMu.Unlock()
	limit, exists := h.clientLimiters[userID]
	if !exists {
		limit = &clientLimit{}
		h.clientLimiters[userID] = limit
	}
	limit.refs++
	return limit
}

// releaseLimiter drops the limiter once the user's last connection closes.
func (h *Handler) releaseLimiter(userID string, limit *clientLimit) {
	h.clientLimitersMu.Lock()
	defer h.clientLimitersMu.Unlock()
	limit.refs--
	if limit.refs <= 0 {
		delete(h.clientLimiters, userID)
	}
}

// Nearby handles GET /api/places/nearby.
func (h *Handler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		h.RespondBadRequest(c, "lat and lon must be valid numbers")
		return
	}

	mode := models.SearchMode(c.DefaultQuery("mode", string(models.ModeTourist)))
	radius, _ := strconv.Atoi(c.DefaultQuery("radius", "0"))

	origin := models.Coordinate{Latitude: lat, Longitude: lon}
	found, err := h.service.Search(c.Request.Context(), origin, mode, radius)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.trackViews(userIDFromContext(c), origin, found)
	c.JSON(http.StatusOK, gin.H{"places": found})
}

// locationUpdate is a position pushed by a websocket client.
type locationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    int     `json:"radius"`
	Mode      string  `json:"mode"`
}

// wsMessage is the envelope sent back to websocket clients.
type wsMessage struct {
	Type     string                   `json:"type"`
	Location *models.ResolvedLocation `json:"location,omitempty"`
	Places   []models.Place           `json:"places,omitempty"`
	Message  string                   `json:"message,omitempty"`
}

// HandleWebSocket serves the continuous nearby feed. Pushed positions flow
// through the resolver's watch stream, so every reading is reverse-geocoded,
// committed as last-known, and recorded to history before the enriched
// location and its fresh place list go back to the client.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := userIDFromContext(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}
	defer ws.Close()

	h.connectionsMu.Lock()
	h.connections[ws] = true
	h.connectionsMu.Unlock()
	defer func() {
		h.connectionsMu.Lock()
		delete(h.connections, ws)
		h.connectionsMu.Unlock()
	}()

	h.Logger.Info("WebSocket connection established", zap.String("user_id", userID))

	limit := h.acquireLimiter(userID)
	defer h.releaseLimiter(userID, limit)

	stream := location.NewStreamProvider()
	resolved, stopWatch, err := h.resolver.WatchLocations(c.Request.Context(), stream, location.Options{UserID: userID})
	if err != nil {
		h.Logger.Error("Failed to start location watch", zap.Error(err))
		return
	}
	defer stopWatch()

	// One writer at a time on the connection.
	var writeMu sync.Mutex
	writeJSON := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(msg)
	}

	// Search preferences from the most recent update, read by the goroutine
	// answering the resolved stream.
	var prefsMu sync.Mutex
	mode := models.ModeTourist
	radius := 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		for loc := range resolved {
			prefsMu.Lock()
			m, rad := mode, radius
			prefsMu.Unlock()

			if err := writeJSON(wsMessage{Type: "location", Location: &loc}); err != nil {
				h.Logger.Error("Failed to send resolved location", zap.Error(err))
				return
			}

			found, err := h.service.Search(c.Request.Context(), loc.Coordinate, m, rad)
			if err != nil {
				// A superseded search means a fresher reading is already
				// being answered; stay silent for this one.
				if errors.Is(err, models.ErrSuperseded) {
					continue
				}
				h.Logger.Error("Nearby search failed", zap.Error(err))
				_ = writeJSON(wsMessage{
					Type:    "error",
					Message: "Failed to get nearby places",
				})
				continue
			}

			if err := writeJSON(wsMessage{Type: "places", Places: found}); err != nil {
				h.Logger.Error("Failed to send places", zap.Error(err))
				return
			}

			h.trackViews(userID, loc.Coordinate, found)
		}
	}()

	for {
		var update locationUpdate
		if err := ws.ReadJSON(&update); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if !h.messageLimiter.allow(limit, time.Now()) {
			h.Logger.Warn("Message rate limit exceeded", zap.String("user_id", userID))
			_ = writeJSON(wsMessage{
				Type:    "error",
				Message: "Too many requests. Please slow down.",
			})
			continue
		}

		prefsMu.Lock()
		if update.Mode != "" {
			mode = models.SearchMode(update.Mode)
		}
		radius = update.Radius
		prefsMu.Unlock()

		stream.Push(models.Coordinate{Latitude: update.Latitude, Longitude: update.Longitude})
	}

	stream.Close()
	<-done
}

// trackViews records the returned places as view interactions, best effort.
func (h *Handler) trackViews(userID string, origin models.Coordinate, found []models.Place) {
	if h.locationRepo == nil || len(found) == 0 {
		return
	}
	go func() {
		interactionCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, p := range found {
			interaction := &models.POIInteraction{
				UserID:          userID,
				POIID:           p.ID,
				POIName:         p.Name,
				POICategory:     string(p.Category),
				InteractionType: "view",
				UserLatitude:    origin.Latitude,
				UserLongitude:   origin.Longitude,
				POILatitude:     p.Coordinate.Latitude,
				POILongitude:    p.Coordinate.Longitude,
				Distance:        p.DistanceMeters,
			}
			if err := h.locationRepo.CreatePOIInteraction(interactionCtx, interaction); err != nil {
				h.Logger.Error("Failed to save POI interaction",
					zap.String("user_id", userID),
					zap.String("poi_id", p.ID),
					zap.Error(err),
				)
			}
		}
	}()
}

func userIDFromContext(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
