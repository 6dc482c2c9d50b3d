package controllers

import (
	"net/http"

	"optionscope/services"

	"github.com/gin-gonic/gin"
)

// PollingController exposes manual control over the polling scheduler
type PollingController struct {
	pollingManager *services.PollingManager
}

// NewPollingController creates a new polling controller
func NewPollingController(pollingManager *services.PollingManager) *PollingController {
	return &PollingController{
		pollingManager: pollingManager,
	}
}

// HandleRunOnce triggers one poll cycle immediately, ignoring trading hours.
// The response summarizes per-entry outcomes instead of failing on the first
// bad entry.
// POST /api/v1/polling/run
func (pc *PollingController) HandleRunOnce(c *gin.Context) {
	summary, err := pc.pollingManager.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Poll cycle failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Poll cycle complete",
		"summary": summary,
	})
}

// HandleGetStatus reports whether the scheduler is running
// GET /api/v1/polling/status
func (pc *PollingController) HandleGetStatus(c *gin.Context) {
	cfg := pc.pollingManager.Config()

	c.JSON(http.StatusOK, gin.H{
		"running":        pc.pollingManager.IsRunning(),
		"interval":       cfg.Interval.String(),
		"risk_free_rate": cfg.RiskFreeRate,
	})
}
