package risk

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/middleware"
	"github.com/richxcame/rental-risk/pkg/pagination"
)

// Handler handles HTTP requests for the risk console
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ========================================
// ADMIN ENDPOINTS
// ========================================

// GetAnalysis computes the risk analysis of a booking
// GET /api/v1/admin/risk/bookings/:id/analysis
func (h *Handler) GetAnalysis(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid booking id", err))
		return
	}

	analysis, err := h.service.Analyze(c.Request.Context(), bookingID)
	if err != nil {
		common.HandleError(c, err, "failed to compute risk analysis")
		return
	}

	common.SuccessResponse(c, analysis)
}

// ApplyAction applies an admin action to a booking
// POST /api/v1/admin/risk/bookings/:id/actions
func (h *Handler) ApplyAction(c *gin.Context) {
	adminID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("unauthorized"))
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid booking id", err))
		return
	}

	var req ActionRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	entry, err := h.service.ApplyAdminAction(c.Request.Context(), bookingID, &req, adminID)
	if err != nil {
		common.HandleError(c, err, "failed to apply admin action")
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusOK, entry, "admin action applied")
}

// ListAudit returns the audit trail of a booking
// GET /api/v1/admin/risk/bookings/:id/audit?limit=20&offset=0
func (h *Handler) ListAudit(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid booking id", err))
		return
	}

	params := pagination.ParseParams(c)

	entries, total, err := h.service.ListAuditEntries(c.Request.Context(), bookingID, params.Limit, params.Offset)
	if err != nil {
		common.HandleError(c, err, "failed to list audit entries")
		return
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, gin.H{"entries": entries}, meta)
}

// RegisterRoutes registers risk routes on the authenticated admin group
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	bookings := admin.Group("/risk/bookings")
	{
		bookings.GET("/:id/analysis", h.GetAnalysis)
		bookings.POST("/:id/actions", h.ApplyAction)
		bookings.GET("/:id/audit", h.ListAudit)
	}
}
