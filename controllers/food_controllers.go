package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type FoodController struct {
	Foods *services.FoodService
}

func NewFoodController(foods *services.FoodService) *FoodController {
	return &FoodController{Foods: foods}
}

// GetAllFoods accepts ?category= and ?status=.
func (fc *FoodController) GetAllFoods(c *gin.Context) {
	foods, err := fc.Foods.ListFoods(c.Request.Context(), c.Query("category"), models.FoodStatus(c.Query("status")))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of foods", foods)
}

func (fc *FoodController) GetFoodByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	food, err := fc.Foods.GetFood(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Food detail", food)
}

func (fc *FoodController) CreateFood(c *gin.Context) {
	var req services.FoodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	food, err := fc.Foods.CreateFood(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("food_id", food.ID).Infof("food %s created", food.Name)
	utils.RespondJSON(c, http.StatusCreated, "Food created successfully", food)
}

func (fc *FoodController) UpdateFood(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req services.FoodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	food, err := fc.Foods.UpdateFood(c.Request.Context(), id, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Food updated", food)
}

func (fc *FoodController) DeleteFood(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := fc.Foods.DeleteFood(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Food deleted", gin.H{"id": id})
}

// AdjustStock is called by the order service. Repeating a reference is a
// no-op that returns the current food.
func (fc *FoodController) AdjustStock(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Delta     int    `json:"delta"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if req.Delta == 0 {
		utils.RespondError(c, utils.NewValidationError("delta must not be zero"))
		return
	}
	food, err := fc.Foods.AdjustStock(c.Request.Context(), id, req.Delta, req.Reference)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock adjusted", food)
}

func (fc *FoodController) StockMovements(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	movements, err := fc.Foods.StockMovements(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock movements", movements)
}
