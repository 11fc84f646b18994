package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// ReceiptLoggerMiddleware records who downloaded which receipt.
func ReceiptLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := logrus.Fields{
			"payment_id": c.Param("id"),
			"user_id":    CurrentUserID(c),
			"request_id": utils.RequestIDFrom(c.Request.Context()),
		}
		if c.Writer.Status() == 200 {
			utils.InfoLogger.WithFields(fields).Info("receipt downloaded")
		} else {
			utils.ErrorLogger.WithFields(fields).Warnf("receipt not served (status %d)", c.Writer.Status())
		}
	}
}
