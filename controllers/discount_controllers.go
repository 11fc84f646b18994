package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type DiscountController struct {
	Discounts *services.DiscountService
}

func NewDiscountController(discounts *services.DiscountService) *DiscountController {
	return &DiscountController{Discounts: discounts}
}

func (dc *DiscountController) CreateDiscount(c *gin.Context) {
	var req services.DiscountInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	discount, err := dc.Discounts.CreateDiscount(c.Request.Context(), req, currentUser(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("discount_id", discount.ID).Infof("discount %s created", discount.DiscountCode)
	utils.RespondJSON(c, http.StatusCreated, "Discount created", discount)
}

func (dc *DiscountController) GetAllDiscounts(c *gin.Context) {
	discounts, err := dc.Discounts.ListDiscounts(c.Request.Context(), models.DiscountStatus(c.Query("status")))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of discounts", discounts)
}

func (dc *DiscountController) GetDiscountByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	discount, err := dc.Discounts.GetDiscount(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Discount detail", discount)
}

func (dc *DiscountController) GetDiscountByCode(c *gin.Context) {
	discount, err := dc.Discounts.GetByCode(c.Request.Context(), strings.ToUpper(c.Param("code")))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Discount detail", discount)
}

func (dc *DiscountController) UpdateDiscount(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req services.UpdateDiscountInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	discount, err := dc.Discounts.UpdateDiscount(c.Request.Context(), id, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Discount updated", discount)
}

func (dc *DiscountController) DeleteDiscount(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := dc.Discounts.DeleteDiscount(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Discount deleted", gin.H{"id": id})
}
