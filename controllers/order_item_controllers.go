package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type OrderItemController struct {
	Items *services.OrderItemService
}

func NewOrderItemController(items *services.OrderItemService) *OrderItemController {
	return &OrderItemController{Items: items}
}

// CreateOrderItem answers 201 even when the stock decrement failed; the item
// then carries needs_stock_reconciliation=true.
func (ic *OrderItemController) CreateOrderItem(c *gin.Context) {
	var req services.CreateOrderItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	item, err := ic.Items.CreateOrderItem(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	message := "Order item created"
	if item.NeedsStockReconciliation {
		message = "Order item created, stock update pending"
	}
	utils.RespondJSON(c, http.StatusCreated, message, item)
}

// GetAllOrderItems accepts ?order_id= and ?status=, which is what the kitchen
// screen polls.
func (ic *OrderItemController) GetAllOrderItems(c *gin.Context) {
	orderID, err := queryUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	items, err := ic.Items.ListOrderItems(c.Request.Context(), orderID, models.OrderItemStatus(c.Query("status")))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of order items", items)
}

func (ic *OrderItemController) GetOrderItemByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	item, err := ic.Items.GetOrderItem(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item detail", item)
}

func (ic *OrderItemController) UpdateOrderItem(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req services.UpdateOrderItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	item, err := ic.Items.UpdateOrderItem(c.Request.Context(), id, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item updated", item)
}

func (ic *OrderItemController) UpdateOrderItemStatus(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	item, err := ic.Items.UpdateOrderItemStatus(c.Request.Context(), id, models.OrderItemStatus(req.Status))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item status updated", item)
}

func (ic *OrderItemController) DeleteOrderItem(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := ic.Items.DeleteOrderItem(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item deleted", gin.H{"id": id})
}

// ReconcileStock retries the stock decrement of a flagged item by hand.
func (ic *OrderItemController) ReconcileStock(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	item, err := ic.Items.ReconcileStock(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock reconciled", item)
}

func (ic *OrderItemController) PendingReconciliation(c *gin.Context) {
	items, err := ic.Items.ListPendingReconciliation(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order items awaiting stock reconciliation", items)
}
