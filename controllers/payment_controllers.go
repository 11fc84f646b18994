package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req services.CreatePaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	req.CreatedBy = currentUser(c)
	payment, err := pc.Payments.CreatePayment(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Payment created", payment)
}

// GetAllPayments accepts ?status= and ?reservation_id=.
func (pc *PaymentController) GetAllPayments(c *gin.Context) {
	reservationID, err := queryUint(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	payments, err := pc.Payments.ListPayments(c.Request.Context(), services.PaymentFilter{
		Status:        models.PaymentStatus(c.Query("status")),
		ReservationID: reservationID,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of payments", payments)
}

func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	payment, err := pc.Payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

func (pc *PaymentController) UpdatePaymentStatus(c *gin.Context) {
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
	payment, err := pc.Payments.UpdatePaymentStatus(c.Request.Context(), id, models.PaymentStatus(req.Status))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment status updated", payment)
}
