package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"foodsafe-backend/internal/history"
	"foodsafe-backend/internal/jobs"
	"foodsafe-backend/internal/profiles"
	"foodsafe-backend/internal/services/health"
	"foodsafe-backend/internal/shared/config"
	"foodsafe-backend/internal/shared/metrics"
	"foodsafe-backend/internal/shared/server/middleware"
	"foodsafe-backend/internal/shared/server/respond"
)

// RouterDeps lists the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	JobHandler     *jobs.Handler
	ProfileHandler *profiles.Handler
	HistoryHandler *history.Handler
	Health         *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthHandler := healthCheck(deps.Health)
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)

	authed := api.Group("", middleware.Auth())
	if deps.JobHandler != nil {
		deps.JobHandler.RegisterRoutes(authed)
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.RegisterRoutes(authed)
	}
	if deps.HistoryHandler != nil {
		deps.HistoryHandler.RegisterRoutes(authed)
	}

	admin := authed.Group("/admin", middleware.RequireAdmin())
	if deps.JobHandler != nil {
		deps.JobHandler.RegisterAdminRoutes(admin)
	}

	return r
}

func healthCheck(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
