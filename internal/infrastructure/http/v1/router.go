// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"geniuserp/internal/domain/invoice"
	"geniuserp/internal/domain/series"
	"geniuserp/internal/infrastructure/http/v1/handlers"
	"geniuserp/internal/infrastructure/http/v1/middleware"
	"geniuserp/internal/infrastructure/storage/postgres"
	"geniuserp/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// InvoiceService drives invoice lifecycle endpoints
	InvoiceService *invoice.Service

	// SeriesService manages numbering series
	SeriesService *series.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Actor())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	{
		invoiceHandler := handlers.NewInvoiceHandler(baseHandler, cfg.InvoiceService)
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", invoiceHandler.Create)
			// Static route must come before :id
			invoices.GET("/lookup", invoiceHandler.Lookup)
			invoices.GET("/:id", invoiceHandler.GetByID)
			invoices.POST("/:id/issue", invoiceHandler.Issue)
			invoices.POST("/:id/send", invoiceHandler.Send)
			invoices.POST("/:id/cancel", invoiceHandler.Cancel)
			invoices.DELETE("/:id", invoiceHandler.Delete)
		}

		seriesHandler := handlers.NewSeriesHandler(baseHandler, cfg.SeriesService)
		seriesGroup := v1.Group("/series")
		{
			seriesGroup.GET("", seriesHandler.List)
			seriesGroup.PUT("", seriesHandler.Save)
			seriesGroup.GET("/:code", seriesHandler.Get)
			seriesGroup.PUT("/:code/counter", seriesHandler.SetCounter)
			seriesGroup.DELETE("/:code", seriesHandler.Deactivate)
		}
	}

	return router
}
