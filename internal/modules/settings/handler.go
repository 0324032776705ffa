package settings

import (
	"github.com/gin-gonic/gin"
	"github.com/jobtrail/core/internal/pkg/aierr"
	"github.com/jobtrail/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ai/settings")
	g.GET("", h.getSettings)
	g.PATCH("", authMW, h.saveSettings)
}

// GET /ai/settings
func (h *Handler) getSettings(c *gin.Context) {
	cur, err := h.svc.Current()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cur.Redacted())
}

// PATCH /ai/settings  [auth]
func (h *Handler) saveSettings(c *gin.Context) {
	var dto AiSettings
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	saved, err := h.svc.Save(dto)
	if err != nil {
		if aierr.Is(err, aierr.KindValidation) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, saved.Redacted())
}
