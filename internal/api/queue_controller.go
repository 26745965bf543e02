package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kitchenline/server/internal/services"
)

// QueueController HTTP слой живой очереди кухни
type QueueController struct {
	queue    *services.QueueService
	autoflow *services.AutoFlowService
	sweepMax int
}

// NewQueueController создает контроллер очереди
func NewQueueController(queue *services.QueueService, autoflow *services.AutoFlowService, sweepMax int) *QueueController {
	return &QueueController{queue: queue, autoflow: autoflow, sweepMax: sweepMax}
}

// View GET /api/v1/queue
func (qc *QueueController) View(c *gin.Context) {
	view, err := qc.queue.View()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Sweep POST /api/v1/queue/sweep
// Ручной запуск прохода авто-продвижения (для внешних планировщиков)
func (qc *QueueController) Sweep(c *gin.Context) {
	maxOrders := qc.sweepMax
	if raw := c.Query("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxOrders = parsed
		}
	}

	advanced, err := qc.autoflow.Sweep(maxOrders)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advanced": advanced})
}
