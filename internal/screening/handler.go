package screening

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
)

// Handler handles HTTP requests for host screening
type Handler struct {
	service *Service
}

// NewHandler creates a new screening handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetPipeline returns the screening stages of a host
// GET /api/v1/admin/screening/hosts/:id
func (h *Handler) GetPipeline(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid host id", err))
		return
	}

	pipeline, err := h.service.GetPipeline(c.Request.Context(), hostID)
	if err != nil {
		common.HandleError(c, err, "failed to load screening pipeline")
		return
	}

	common.SuccessResponse(c, pipeline)
}

// StartPipeline starts, or restarts after a failure, the screening of a host
// POST /api/v1/admin/screening/hosts/:id
func (h *Handler) StartPipeline(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid host id", err))
		return
	}

	pipeline, err := h.service.StartPipeline(c.Request.Context(), hostID)
	if err != nil {
		common.HandleError(c, err, "failed to start screening pipeline")
		return
	}

	common.CreatedResponse(c, pipeline)
}

// RegisterRoutes registers screening routes on the authenticated admin group
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	hosts := admin.Group("/screening/hosts")
	{
		hosts.GET("/:id", h.GetPipeline)
		hosts.POST("/:id", h.StartPipeline)
	}
}
