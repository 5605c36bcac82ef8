package location

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/domain"
	"github.com/wanderer-app/wanderer/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	resolver *Resolver
	repo     Repository
}

func NewHandler(base *domain.BaseHandler, resolver *Resolver, repo Repository) *Handler {
	return &Handler{
		BaseHandler: base,
		resolver:    resolver,
		repo:        repo,
	}
}

// Resolve handles GET /api/location/resolve. Clients with a device fix push
// it as lat/lon query params; without one the server falls back to IP lookup
// and then the persisted last-known location.
func (h *Handler) Resolve(c *gin.Context) {
	opts, ok := h.parseResolveRequest(c)
	if !ok {
		return
	}

	resolved, err := h.resolver.Resolve(c.Request.Context(), opts)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

// Refresh handles POST /api/location/refresh: it reopens the session gate
// and forces a fresh acquisition.
func (h *Handler) Refresh(c *gin.Context) {
	opts, ok := h.parseResolveRequest(c)
	if !ok {
		return
	}

	resolved, err := h.resolver.Refresh(c.Request.Context(), opts)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (h *Handler) parseResolveRequest(c *gin.Context) (Options, bool) {
	opts := Options{
		Policy: PolicyOncePerSession,
		UserID: userIDFromContext(c),
	}
	if c.Query("fresh") == "true" {
		opts.Policy = PolicyAlways
	}

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr != "" || lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			h.RespondBadRequest(c, "lat and lon must both be valid numbers")
			return opts, false
		}
		coord := models.Coordinate{Latitude: lat, Longitude: lon}
		if accStr := c.Query("accuracy"); accStr != "" {
			if acc, err := strconv.ParseFloat(accStr, 64); err == nil {
				coord.AccuracyMeters = &acc
			}
		}
		c.Request = c.Request.WithContext(WithClientPosition(c.Request.Context(), coord))
	}
	return opts, true
}

// History handles GET /api/location/history.
func (h *Handler) History(c *gin.Context) {
	userID := userIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	histories, err := h.repo.GetLocationHistory(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": histories})
}

// SavePlace handles POST /api/places/saved.
func (h *Handler) SavePlace(c *gin.Context) {
	var place models.SavedPlace
	if err := c.ShouldBindJSON(&place); err != nil {
		h.RespondBadRequest(c, "invalid place payload")
		return
	}
	if place.Name == "" {
		h.RespondBadRequest(c, "place name is required")
		return
	}
	place.UserID = userIDFromContext(c)

	if err := h.repo.SavePlace(c.Request.Context(), &place); err != nil {
		h.RespondError(c, err)
		return
	}

	h.Logger.Info("Place saved",
		zap.String("user_id", place.UserID),
		zap.String("name", place.Name),
	)
	c.JSON(http.StatusCreated, place)
}

// ListSavedPlaces handles GET /api/places/saved.
func (h *Handler) ListSavedPlaces(c *gin.Context) {
	places, err := h.repo.ListSavedPlaces(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}

// DeleteSavedPlace handles DELETE /api/places/saved/:id.
func (h *Handler) DeleteSavedPlace(c *gin.Context) {
	err := h.repo.DeleteSavedPlace(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// userIDFromContext reads the authenticated user, defaulting to anonymous so
// the resolver still works for signed-out visitors.
func userIDFromContext(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
