package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerSweep handles POST /api/v1/admin/sweep
// Runs one reconciliation pass immediately and reports what it repaired
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	h.logger.Info("Manual sweep requested")

	report, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("Sweep failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Sweep failed",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}
