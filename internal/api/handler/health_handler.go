package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

func checkDependency(ctx context.Context, p Pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.HealthCheck(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

// Health handles GET /health
// Reports 200 when every backing store answers, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	postgres := checkDependency(ctx, h.postgres)
	redis := checkDependency(ctx, h.redis)

	healthy := (postgres == "ok" || postgres == "skipped") &&
		(redis == "ok" || redis == "skipped")

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "genjobs-api",
		"checks": gin.H{
			"postgres": postgres,
			"redis":    redis,
		},
	})
}
