package modelstore

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jobtrail/core/internal/pkg/aierr"
	"github.com/jobtrail/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ai/models")
	g.GET("/files", h.findModelFiles)
	g.POST("/download", authMW, h.downloadModel)
	g.POST("/cleanup", authMW, h.cleanupInvalid)
	g.POST("/clear-invalid-path", authMW, h.clearInvalidPath)

	rg.GET("/ai/tasks", h.listTasks)
	rg.GET("/ai/tasks/:id", h.getTask)
}

// GET /ai/models/files
func (h *Handler) findModelFiles(c *gin.Context) {
	files, err := h.svc.FindModelFiles()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, files)
}

type downloadDTO struct {
	URL string `json:"url" binding:"required"`
}

// POST /ai/models/download  [auth]
func (h *Handler) downloadModel(c *gin.Context) {
	var dto downloadDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.svc.Download(c.Request.Context(), dto.URL)
	if err != nil {
		if aierr.Is(err, aierr.KindInvalidURL) {
			response.AIError(c, err)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Accepted(c, task)
}

// GET /ai/tasks
func (h *Handler) listTasks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		response.BadRequest(c, "limit must be a positive integer")
		return
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"tasks": tasks, "count": len(tasks)})
}

// GET /ai/tasks/:id
func (h *Handler) getTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, task)
}

// POST /ai/models/cleanup  [auth]
func (h *Handler) cleanupInvalid(c *gin.Context) {
	removed, err := h.svc.CleanupInvalidModelFiles()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": removed, "count": len(removed)})
}

// POST /ai/models/clear-invalid-path  [auth]
func (h *Handler) clearInvalidPath(c *gin.Context) {
	changed, err := h.svc.ClearInvalidModelPath()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"changed": changed})
}
