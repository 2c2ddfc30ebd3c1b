package http

import (
	"context"
	"net/http"

	"pairlink/internal/core/ports"
	"pairlink/internal/infrastructure/monitoring"
	"pairlink/pkg/errors"

	"github.com/gin-gonic/gin"
)

type readinessChecker interface {
	CheckAll(ctx context.Context) monitoring.HealthStatus
}

type StatusHandler struct {
	signaling ports.SignalingService
	health    readinessChecker
	version   string
}

func NewStatusHandler(signaling ports.SignalingService, health readinessChecker, version string) *StatusHandler {
	return &StatusHandler{
		signaling: signaling,
		health:    health,
		version:   version,
	}
}

func (h *StatusHandler) SetupRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/stats", h.Stats)
}

// Health reports liveness only.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  monitoring.StatusHealthy,
		"version": h.version,
	})
}

func (h *StatusHandler) Ready(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	if status.Status != monitoring.StatusHealthy {
		c.Error(errors.NewServiceUnavailableError("not ready").WithContext("checks", status.Checks))
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *StatusHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.signaling.Stats(c.Request.Context()))
}

var _ ports.StatusHandler = (*StatusHandler)(nil)
