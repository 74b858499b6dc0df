package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/middleware"
	"github.com/richxcame/rental-risk/pkg/pagination"
)

// Handler handles HTTP requests for the verification queue
type Handler struct {
	service *Service
}

// NewHandler creates a new verification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid booking id", err))
		return uuid.Nil, false
	}
	return id, true
}

// ListQueue returns the verification queue
// GET /api/v1/admin/verification/queue?status=pending&limit=20&offset=0
func (h *Handler) ListQueue(c *gin.Context) {
	params := pagination.ParseParams(c)

	queue, total, err := h.service.ListQueue(c.Request.Context(), c.DefaultQuery("status", "pending"), params.Limit, params.Offset)
	if err != nil {
		common.HandleError(c, err, "failed to list verification queue")
		return
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, queue, meta)
}

// GetGate evaluates the verification gate for a booking
// GET /api/v1/admin/verification/bookings/:id/gate
func (h *Handler) GetGate(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	view, err := h.service.GetGate(c.Request.Context(), bookingID)
	if err != nil {
		common.HandleError(c, err, "failed to evaluate verification gate")
		return
	}

	common.SuccessResponse(c, view)
}

// RecordDocuments records that guest documents arrived
// POST /api/v1/admin/verification/bookings/:id/documents
func (h *Handler) RecordDocuments(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req DocumentsRequest
	if c.Request.ContentLength > 0 && !middleware.ValidateAndBind(c, &req) {
		return
	}

	view, err := h.service.RecordDocuments(c.Request.Context(), bookingID, req.SubmittedAt)
	if err != nil {
		common.HandleError(c, err, "failed to record documents")
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusOK, view, "documents recorded")
}

// RecordTripEnd records the return inspection
// POST /api/v1/admin/verification/bookings/:id/trip-end
func (h *Handler) RecordTripEnd(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req TripEndRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	view, err := h.service.RecordTripEnd(c.Request.Context(), bookingID, &req)
	if err != nil {
		common.HandleError(c, err, "failed to record trip end")
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusOK, view, "trip end recorded")
}

// Resolve applies an operator decision
// POST /api/v1/admin/verification/bookings/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	reviewerID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("unauthorized"))
		return
	}

	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req ResolveRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	booking, err := h.service.Resolve(c.Request.Context(), bookingID, &req, reviewerID)
	if err != nil {
		common.HandleError(c, err, "failed to resolve verification")
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusOK, booking, "verification resolved")
}

// RegisterRoutes registers verification routes on the authenticated admin group
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	v := admin.Group("/verification")
	{
		v.GET("/queue", h.ListQueue)
		v.GET("/bookings/:id/gate", h.GetGate)
		v.POST("/bookings/:id/documents", h.RecordDocuments)
		v.POST("/bookings/:id/trip-end", h.RecordTripEnd)
		v.POST("/bookings/:id/resolve", h.Resolve)
	}
}
