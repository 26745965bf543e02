package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kitchenline/server/internal/services"
)

// OrderController HTTP слой оркестратора заказов
type OrderController struct {
	orders *services.OrderService
}

// NewOrderController создает контроллер заказов
func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// respondServiceError переводит ошибки сервисного слоя в HTTP статусы
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}

// CreateOrder POST /api/v1/orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}

	order, err := oc.orders.CreateOrder(req, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order.ToMap()})
}

// ListOrders GET /api/v1/orders
func (oc *OrderController) ListOrders(c *gin.Context) {
	filter := services.OrderListFilter{
		OrderType: c.Query("order_type"),
		Channel:   c.Query("channel"),
		Priority:  c.Query("priority"),
		Search:    c.Query("search"),
	}

	if statuses := c.Query("status"); statuses != "" {
		filter.Statuses = strings.Split(statuses, ",")
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	orders, total, err := oc.orders.ListOrders(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := make([]map[string]interface{}, 0, len(orders))
	for i := range orders {
		payload = append(payload, orders[i].ToMap())
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": payload,
		"total":  total,
		"page":   filter.Page,
	})
}

// GetOrder GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orders.GetOrder(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order.ToMap()})
}

// SetStatus PATCH /api/v1/orders/:id/status
func (oc *OrderController) SetStatus(c *gin.Context) {
	var req services.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := oc.orders.SetOrderStatus(c.Param("id"), req, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order.ToMap()})
}

// SetItemState PATCH /api/v1/orders/:id/items/:itemId
func (oc *OrderController) SetItemState(c *gin.Context) {
	var req services.ItemChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}

	order, err := oc.orders.SetItemState(c.Param("id"), c.Param("itemId"), req, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order.ToMap()})
}

// VerifyHandoff POST /api/v1/orders/:id/handoff/verify
func (oc *OrderController) VerifyHandoff(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	order, err := oc.orders.VerifyHandoff(c.Param("id"), req.Code, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order.ToMap()})
}

// ListEvents GET /api/v1/orders/:id/events
func (oc *OrderController) ListEvents(c *gin.Context) {
	// Проверяем существование заказа, журнал пустого заказа это 404
	if _, err := oc.orders.GetOrder(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	events, err := oc.orders.ListEvents(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := make([]map[string]interface{}, 0, len(events))
	for i := range events {
		payload = append(payload, events[i].ToMap())
	}
	c.JSON(http.StatusOK, gin.H{"events": payload})
}

// SetAutoFlow PATCH /api/v1/orders/:id/autoflow
func (oc *OrderController) SetAutoFlow(c *gin.Context) {
	var req struct {
		Paused *bool  `json:"paused" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paused is required"})
		return
	}

	order, err := oc.orders.SetAutoFlow(c.Param("id"), *req.Paused, req.Reason, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order.ToMap()})
}
