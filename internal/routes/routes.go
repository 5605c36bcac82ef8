package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/domain"
	"github.com/wanderer-app/wanderer/internal/app/domain/geoclient"
	"github.com/wanderer-app/wanderer/internal/app/domain/location"
	"github.com/wanderer-app/wanderer/internal/app/domain/places"
	"github.com/wanderer-app/wanderer/internal/pkg/config"
)

type AppHandlers struct {
	Location *location.Handler
	Places   *places.Handler
}

// Setup wires repositories, provider clients and services, then registers
// every route on the engine.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) {
	handlers := setupDependencies(dbPool, cfg, log)
	setupRouter(r, handlers)
}

func setupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) *AppHandlers {
	baseHandler := domain.NewBaseHandler(log)

	locationRepo := location.NewRepository(dbPool, log)

	// Provider clients.
	ipClient := geoclient.NewIPClient(cfg.Providers.IPLookupURL, cfg.Providers.IPLookupTimeout, log)
	reverseGeocoder := geoclient.NewReverseGeocoder(cfg.Providers.ReverseGeocodeURL, cfg.Providers.IPLookupTimeout, log)
	overpass := geoclient.NewOverpassClient(cfg.Providers.OverpassMirrors, log)
	tomtom := geoclient.NewTomTomClient(cfg.Providers.TomTomSearchURL, cfg.Providers.TomTomAPIKey, log)

	store := location.NewStore(cfg.LocationStorePath, log)
	resolver := location.NewResolver(location.ResolverConfig{
		Device:        location.ClientPositionProvider{},
		IP:            ipClient,
		Geocoder:      reverseGeocoder,
		Store:         store,
		History:       locationRepo,
		DeviceTimeout: cfg.Providers.DeviceTimeout,
		IPTimeout:     cfg.Providers.IPLookupTimeout,
		Logger:        log,
	})

	var alternate places.Backend
	if tomtom.Enabled() {
		alternate = tomtom
	} else {
		log.Info("TomTom alternate backend disabled, no API key configured")
	}
	placesService := places.NewService(places.ServiceConfig{
		Primary:        overpass,
		Alternate:      alternate,
		CacheTTL:       cfg.Search.CacheTTL,
		SearchTimeout:  cfg.Providers.SearchTimeout,
		DefaultRadius:  cfg.Search.DefaultRadius,
		MaxPerCategory: cfg.Search.MaxPerCategory,
		Logger:         log,
	})

	return &AppHandlers{
		Location: location.NewHandler(baseHandler, resolver, locationRepo),
		Places:   places.NewHandler(baseHandler, placesService, resolver, locationRepo),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/location/resolve", h.Location.Resolve)
		api.POST("/location/refresh", h.Location.Refresh)
		api.GET("/location/history", h.Location.History)

		api.GET("/places/nearby", h.Places.Nearby)
		api.POST("/places/saved", h.Location.SavePlace)
		api.GET("/places/saved", h.Location.ListSavedPlaces)
		api.DELETE("/places/saved/:id", h.Location.DeleteSavedPlace)
	}

	r.GET("/ws/nearby", h.Places.HandleWebSocket)
}
