package middleware

import (
	"net/http"

	"billflow/internal/logger"
	"billflow/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 response and logs it with the stack
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				reqID := c.GetString(utils.RequestIDKey)

				// never expose the panic to the client
				log.Error("panic recovered",
					zap.String("request_id", reqID),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err),
					zap.Stack("stack"),
				)

				response := utils.NewErrorResponse(utils.ErrCodeInternalError,
					"An unexpected error occurred").
					WithRequestID(reqID)
				c.AbortWithStatusJSON(http.StatusInternalServerError, response)
			}
		}()
		c.Next()
	}
}

// NoStore keeps responses out of shared caches. Public invoice links carry
// client data.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// RequestLogger is the request logging chain: request id first so the
// access log carries it.
func RequestLogger(log *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		utils.RequestIDMiddleware(),
		logger.GinMiddleware(log),
	}
}
