package app

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobtrail/core/internal/middleware"
	"github.com/jobtrail/core/internal/modules/modelstore"
	"github.com/jobtrail/core/internal/modules/orchestrator"
	"github.com/jobtrail/core/internal/modules/provider"
	"github.com/jobtrail/core/internal/modules/respcache"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/jwt"
	"github.com/jobtrail/core/internal/pkg/response"
	"github.com/jobtrail/core/internal/pkg/taskqueue"
)

const tokenTTL = 30 * 24 * time.Hour

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Shared services
	settingsSvc := settings.NewService(a.db)
	cacheSvc := respcache.NewService(a.db)
	taskSvc := taskqueue.NewService(a.rc)
	storeSvc := modelstore.NewService(a.cfg.Paths.Models, settingsSvc, taskSvc, a.logger)

	localAdapter := provider.NewLocalAdapter(
		a.cfg.LocalRuntime.URL,
		time.Duration(a.cfg.LocalRuntime.RequestTimeout)*time.Second,
		storeSvc.ValidateModelPath,
		a.logger,
	)
	cloudAdapter := provider.NewCloudAdapter(a.logger)
	orch := orchestrator.New(settingsSvc, cacheSvc, localAdapter, cloudAdapter, a.logger)

	r.GET("/health", a.healthHandler(orch))

	api := r.Group("/api/v2")
	api.POST("/auth/token", a.issueToken)

	settings.NewHandler(settingsSvc).RegisterRoutes(api, authMW)
	modelstore.NewHandler(storeSvc).RegisterRoutes(api, authMW)
	respcache.NewHandler(cacheSvc).RegisterRoutes(api, authMW)
	orchestrator.NewHandler(orch).RegisterRoutes(api, authMW)
}

type tokenDTO struct {
	Secret string `json:"secret"`
}

// POST /auth/token
//
// Exchanges the shared API secret for a bearer token. With no secret
// configured the service trusts its localhost binding and issues tokens
// freely, which covers first-run desktop setups.
func (a *App) issueToken(c *gin.Context) {
	var dto tokenDTO
	if err := c.ShouldBindJSON(&dto); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}
	if a.cfg.APISecret != "" &&
		subtle.ConstantTimeCompare([]byte(dto.Secret), []byte(a.cfg.APISecret)) != 1 {
		response.UnauthorizedMsg(c, "invalid secret")
		return
	}

	token, err := jwt.Sign("desktop", tokenTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"token": token, "expires_in": int64(tokenTTL.Seconds())})
}

// GET /health
func (a *App) healthHandler(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbOK := false
		if sqlDB, err := a.db.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
		redisOK := a.rc.Ping(ctx) == nil
		localOK, _ := orch.LocalAvailable(ctx)

		status := http.StatusOK
		if !dbOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"db":            dbOK,
			"redis":         redisOK,
			"local_runtime": localOK,
		})
	}
}
