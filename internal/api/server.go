// Package api exposes the sync engine's observable surface over a small
// local HTTP interface, used by the serve (daemon) mode. Consumers only ever
// see SyncState snapshots; no raw errors or remote details leak through.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/syncer"
)

// StatusHandler serves sync status and the manual sync trigger.
type StatusHandler struct {
	orchestrator *syncer.Orchestrator
	logger       *zap.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(orchestrator *syncer.Orchestrator, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{orchestrator: orchestrator, logger: logger}
}

// SetupRoutes mounts the status API onto the router.
func SetupRoutes(router *gin.Engine, handler *StatusHandler) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/status", handler.GetStatus)
		apiV1.POST("/sync", handler.TriggerSync)
	}
}

// GetStatus returns the current SyncState snapshot.
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.State())
}

// TriggerSync runs a full sync cycle and reports the resulting state. A sync
// refused because the engine is unconfigured or offline still returns 200;
// the state in the body says why nothing happened.
func (h *StatusHandler) TriggerSync(c *gin.Context) {
	if err := h.orchestrator.Sync(c.Request.Context()); err != nil {
		h.logger.Warn("manual sync failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"state": h.orchestrator.State(),
		})
		return
	}
	state := h.orchestrator.State()
	if state.Status == domain.StatusNotConfigured {
		c.JSON(http.StatusOK, gin.H{
			"message": "sync is not configured; run fitsync configure first",
			"state":   state,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
