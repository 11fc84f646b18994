package middlewares

import (
	"github.com/gin-gonic/gin"
)

// PaymentSecurityHeaders keeps bills and receipts out of caches.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// PaymentRateLimiter is a tighter limit for endpoints that move money.
func PaymentRateLimiter() gin.HandlerFunc {
	return NewRateLimiter(2, 10).RateLimit()
}
