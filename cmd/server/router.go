package main

import (
	"billflow/internal/handlers"
	"billflow/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func setupRouter(log *zap.Logger, handler *handlers.Handler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()

	// Request ID and access log
	r.Use(middleware.RequestLogger(log)...)

	// Recovery - prevents panics from crashing server
	r.Use(middleware.Recovery(log))

	// Tracing and HTTP metrics
	r.Use(otelgin.Middleware("billflow"))

	// Health check (no rate limiting)
	r.GET("/health", handler.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/recurring/runs", handler.GetRecurringRuns)
	}

	// Public invoice (signed link from the invoice email)
	public := r.Group("/invoice")
	public.Use(middleware.NoStore(), middleware.RateLimitMiddleware(rateLimiter))
	{
		public.GET("/:token", handler.GetInvoiceByToken)
	}

	return r
}
