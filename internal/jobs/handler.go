package jobs

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/products"
	"foodsafe-backend/internal/shared/server/middleware"
	"foodsafe-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the job queue.
type Handler struct {
	Queue    *Queue
	Products products.Lookup
}

// NewHandler constructs a Handler. lookup may be nil, which disables barcode
// scans.
func NewHandler(queue *Queue, lookup products.Lookup) *Handler {
	return &Handler{Queue: queue, Products: lookup}
}

// RegisterRoutes attaches scan and job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scans", h.submitScan)
	rg.GET("/jobs/:id", h.getJob)
	rg.DELETE("/jobs/:id", h.cancelJob)
}

// RegisterAdminRoutes attaches operational routes to an admin-only group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/stats", h.stats)
}

type scanRequest struct {
	Kind            string   `json:"kind"`
	Ingredients     []string `json:"ingredients"`
	IngredientsText string   `json:"ingredientsText"`
	Barcode         string   `json:"barcode"`
	ProductName     string   `json:"productName"`
	Allergies       []string `json:"allergies"`
	Medications     []string `json:"medications"`
}

// JobView is the polling representation of a job.
type JobView struct {
	JobID       string                   `json:"jobId"`
	Status      Status                   `json:"status"`
	Kind        analysis.Kind            `json:"kind"`
	CreatedAt   time.Time                `json:"createdAt"`
	CompletedAt *time.Time               `json:"completedAt,omitempty"`
	Result      *analysis.AnalysisResult `json:"result,omitempty"`
	Error       string                   `json:"error,omitempty"`
	ErrorCode   string                   `json:"errorCode,omitempty"`
}

// NewJobView converts a job snapshot into its polling representation.
func NewJobView(job Job) JobView {
	return JobView{
		JobID:       job.ID,
		Status:      job.Status,
		Kind:        job.Kind,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Result:      job.Result,
		Error:       job.Error,
		ErrorCode:   job.ErrorCode,
	}
}

func (h *Handler) submitScan(c *gin.Context) {
	var body scanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}

	kind, err := analysis.ParseKind(body.Kind)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "kind must be barcode_lookup or manual_entry", []map[string]string{
			{"field": "kind", "issue": "invalid"},
		})
		return
	}

	ingredients := body.Ingredients
	if len(ingredients) == 0 && strings.TrimSpace(body.IngredientsText) != "" {
		ingredients = analysis.SplitIngredientText(body.IngredientsText)
	}
	productName := body.ProductName
	barcode := strings.TrimSpace(body.Barcode)

	if kind == analysis.KindBarcodeLookup {
		product, ok := h.resolveBarcode(c, barcode)
		if !ok {
			return
		}
		barcode = product.Barcode
		if len(ingredients) == 0 {
			ingredients = product.Ingredients
		}
		if strings.TrimSpace(productName) == "" {
			productName = product.Name
		}
	}

	req, err := analysis.NewRequest(analysis.RequestParams{
		RequesterID: middleware.UserIDFromContext(c),
		Kind:        kind,
		Ingredients: ingredients,
		Allergies:   body.Allergies,
		Medications: body.Medications,
		ProductName: productName,
		Barcode:     barcode,
	})
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	jobID, err := h.Queue.Submit(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrQueueFull):
			respond.Error(c, http.StatusServiceUnavailable, "queue_full", "Too many scans in progress, try again shortly", nil)
		case errors.Is(err, ErrQueueClosed):
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "Service is shutting down", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	c.Set("jobId", jobID)
	c.Set("statusTransition", "->pending")
	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":  jobID,
		"status": string(StatusProcessing),
	})
}

func (h *Handler) resolveBarcode(c *gin.Context, barcode string) (products.Product, bool) {
	if barcode == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "barcode is required for barcode scans", []map[string]string{
			{"field": "barcode", "issue": "required"},
		})
		return products.Product{}, false
	}
	if h.Products == nil {
		respond.Error(c, http.StatusServiceUnavailable, "unavailable", "Barcode lookup is not configured", nil)
		return products.Product{}, false
	}
	product, err := h.Products.Lookup(c.Request.Context(), barcode)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrInvalidBarcode):
			respond.Error(c, http.StatusBadRequest, "validation_error", "barcode is invalid", []map[string]string{
				{"field": "barcode", "issue": "invalid"},
			})
		case errors.Is(err, products.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "product_not_found", "No product found for this barcode", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "product_lookup_failed", "Product lookup failed", nil)
		}
		return products.Product{}, false
	}
	return product, true
}

func (h *Handler) getJob(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)
	job, err := h.Queue.Poll(c.Request.Context(), jobID, middleware.UserIDFromContext(c))
	if err != nil {
		h.writeLookupError(c, err, "failed to fetch job")
		return
	}
	respond.OK(c, NewJobView(job))
}

func (h *Handler) cancelJob(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)
	if err := h.Queue.Cancel(c.Request.Context(), jobID, middleware.UserIDFromContext(c)); err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			respond.Error(c, http.StatusConflict, "already_terminal", "Job has already finished", nil)
			return
		}
		h.writeLookupError(c, err, "failed to cancel job")
		return
	}
	c.Set("statusTransition", "->failed")
	c.Status(http.StatusNoContent)
}

func (h *Handler) stats(c *gin.Context) {
	respond.OK(c, h.Queue.Stats())
}

func (h *Handler) writeLookupError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "You do not have access to this job", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
