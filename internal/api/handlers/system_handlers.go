package handlers

import (
	"net/http"

	"attendance-kiosk/internal/utils"

	"github.com/gin-gonic/gin"
)

// GetStatus gibt System- und Sitzungsstatistiken zurück
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetSystemStats(h.session.Snapshot(), h.startedAt))
}
