package profiles

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"foodsafe-backend/internal/shared/server/middleware"
	"foodsafe-backend/internal/shared/server/respond"
)

// Handler exposes the caller's own profile.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches profile routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.getProfile)
	rg.PUT("/profile", h.putProfile)
}

type profileRequest struct {
	Allergies   []string `json:"allergies"`
	Medications []string `json:"medications"`
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load profile", nil)
		return
	}
	respond.OK(c, profile)
}

func (h *Handler) putProfile(c *gin.Context) {
	var body profileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	profile, err := h.Svc.Save(c.Request.Context(), middleware.UserIDFromContext(c), body.Allergies, body.Medications)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save profile", nil)
		return
	}
	respond.OK(c, profile)
}
