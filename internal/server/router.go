package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/middleware"
	"github.com/wanderer-app/wanderer/internal/pkg/config"
	"github.com/wanderer-app/wanderer/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and
// routes.
func SetupRouter(dbPool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.OTELGinMiddleware("wanderer"))
	r.Use(middleware.RequestMetrics())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(middleware.IdentityMiddleware())

	routes.Setup(r, dbPool, cfg, logger)

	return r
}
