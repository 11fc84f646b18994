package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type ReceiptController struct {
	Payments *services.PaymentService
}

func NewReceiptController(payments *services.PaymentService) *ReceiptController {
	return &ReceiptController{Payments: payments}
}

// GetReceipt streams the PDF receipt of a Completed payment.
func (rc *ReceiptController) GetReceipt(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	receipt, err := rc.Payments.Receipt(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	disposition := "attachment"
	if c.Query("inline") == "true" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, receipt.Filename))
	c.Header("X-Receipt-Number", receipt.Number)
	c.Data(http.StatusOK, "application/pdf", receipt.PDF)
}
