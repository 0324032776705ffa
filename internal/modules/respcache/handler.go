package respcache

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobtrail/core/internal/models"
	"github.com/jobtrail/core/internal/pkg/pagination"
	"github.com/jobtrail/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ai/cache")
	g.GET("/stats", h.getStats)
	g.GET("/entries", authMW, h.listEntries)
	g.DELETE("", authMW, h.clearAll)
	g.DELETE("/purposes/:purpose", authMW, h.clearByPurpose)
	g.POST("/cleanup-expired", authMW, h.cleanupExpired)
	g.POST("/evict/size", authMW, h.evictBySize)
	g.POST("/evict/count", authMW, h.evictByCount)
}

// GET /ai/cache/stats
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.svc.Stats()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

// entryListItem omits the payload blob from the admin listing.
type entryListItem struct {
	ID          uint      `json:"id"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
	Purpose     string    `json:"purpose"`
	Fingerprint string    `json:"fingerprint"`
	SizeBytes   int64     `json:"size_bytes"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// GET /ai/cache/entries  [auth]
func (h *Handler) listEntries(c *gin.Context) {
	q := pagination.FromContext(c)

	tx := h.svc.DB().Model(&models.AIResponseCacheModel{}).Order("created_at DESC")
	if purpose := c.Query("purpose"); purpose != "" {
		tx = tx.Where("purpose = ?", purpose)
	}

	var items []entryListItem
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// DELETE /ai/cache  [auth]
func (h *Handler) clearAll(c *gin.Context) {
	count, err := h.svc.ClearAll()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": count})
}

// DELETE /ai/cache/purposes/:purpose  [auth]
func (h *Handler) clearByPurpose(c *gin.Context) {
	count, err := h.svc.ClearByPurpose(c.Param("purpose"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": count})
}

// POST /ai/cache/cleanup-expired  [auth]
func (h *Handler) cleanupExpired(c *gin.Context) {
	count, err := h.svc.CleanupExpired()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": count})
}

type evictSizeDTO struct {
	MaxSizeMB int64 `json:"max_size_mb"`
}

// POST /ai/cache/evict/size  [auth]
func (h *Handler) evictBySize(c *gin.Context) {
	var dto evictSizeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if dto.MaxSizeMB < 0 {
		response.BadRequest(c, "max_size_mb must be >= 0")
		return
	}
	count, err := h.svc.EvictBySize(dto.MaxSizeMB * 1024 * 1024)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": count})
}

// POST /ai/cache/evict/count  [auth]
func (h *Handler) evictByCount(c *gin.Context) {
	maxEntries, err := strconv.ParseInt(c.Query("max_entries"), 10, 64)
	if err != nil {
		var dto struct {
			MaxEntries int64 `json:"max_entries"`
		}
		if bindErr := c.ShouldBindJSON(&dto); bindErr != nil {
			response.BadRequest(c, "max_entries is required")
			return
		}
		maxEntries = dto.MaxEntries
	}
	if maxEntries < 0 {
		response.BadRequest(c, "max_entries must be >= 0")
		return
	}
	count, err := h.svc.EvictByCount(maxEntries)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": count})
}
