package orchestrator

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jobtrail/core/internal/modules/provider"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/response"
)

type Handler struct{ orch *Orchestrator }

func NewHandler(orch *Orchestrator) *Handler { return &Handler{orch: orch} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/ai/test", authMW, h.testConnection)
	rg.GET("/ai/providers/local/availability", h.localAvailability)

	rg.POST("/ai/jobs/parse", authMW, h.runText(PurposeParseJob))
	rg.POST("/ai/profile/extract", authMW, h.runText(PurposeExtractProfile))
	rg.POST("/ai/skills/extract", authMW, h.runText(PurposeExtractSkills))
	rg.POST("/ai/documents/resume", authMW, h.runDocument(PurposeGenResume))
	rg.POST("/ai/documents/cover-letter", authMW, h.runDocument(PurposeGenCoverLetter))
	rg.POST("/ai/text/rewrite", authMW, h.runText(PurposeRewriteText))
	rg.POST("/ai/text/summary", authMW, h.runText(PurposeGenSummary))
}

type textTaskDTO struct {
	Text    string  `json:"text" binding:"required"`
	Options Options `json:"options"`
}

// runText serves the single-input tasks: parsing, extraction, rewrite,
// summary.
func (h *Handler) runText(purpose Purpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dto textTaskDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		h.run(c, purpose, dto.Text, dto.Options)
	}
}

type documentTaskDTO struct {
	Profile string  `json:"profile" binding:"required"`
	Job     string  `json:"job" binding:"required"`
	Options Options `json:"options"`
}

// runDocument serves resume and cover letter generation, which take both a
// profile and a job posting. The two sections are labeled so the prompt can
// refer to them and the fingerprint covers both.
func (h *Handler) runDocument(purpose Purpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dto documentTaskDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		input := fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nJOB POSTING:\n%s",
			strings.TrimSpace(dto.Profile), strings.TrimSpace(dto.Job))
		h.run(c, purpose, input, dto.Options)
	}
}

func (h *Handler) run(c *gin.Context, purpose Purpose, input string, opts Options) {
	result, err := h.orch.Run(c.Request.Context(), purpose, input, opts)
	if err != nil {
		response.AIError(c, err)
		return
	}
	if purpose == PurposeGenResume || purpose == PurposeGenCoverLetter {
		result.Payload = attachPreview(result.Payload)
	}
	response.OK(c, result)
}

type testDTO struct {
	Settings *settings.AiSettings `json:"settings"`
}

// POST /ai/test  [auth]
//
// With a settings object in the body the test runs against that
// configuration instead of the persisted one, so the settings screen can
// verify credentials before saving.
func (h *Handler) testConnection(c *gin.Context) {
	var dto testDTO
	if err := c.ShouldBindJSON(&dto); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.orch.TestConnection(c.Request.Context(), dto.Settings)
	if err != nil {
		response.AIError(c, err)
		return
	}
	response.OK(c, result)
}

// GET /ai/providers/local/availability
func (h *Handler) localAvailability(c *gin.Context) {
	available, err := h.orch.LocalAvailable(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"backend": provider.BackendLocal, "available": available})
}
