package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"billflow/internal/logger"
	"billflow/internal/models"
	"billflow/internal/services"
	"billflow/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Schedule reports the next recurring pass
type Schedule interface {
	NextRun() (time.Time, bool)
}

type Handler struct {
	db       Pinger
	invoices services.InvoiceStore
	runs     services.RunStore
	links    *services.LinkSigner
	schedule Schedule
	now      func() time.Time
}

// NewHandler wires the ops handlers. schedule may be nil when the recurring
// scheduler is disabled.
func NewHandler(db Pinger, invoices services.InvoiceStore, runs services.RunStore, links *services.LinkSigner, schedule Schedule) *Handler {
	return &Handler{
		db:       db,
		invoices: invoices,
		runs:     runs,
		links:    links,
		schedule: schedule,
		now:      time.Now,
	}
}

// Health check
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.FromGin(c).Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}

	resp := gin.H{
		"status": "healthy",
		"time":   h.now().UTC().Format(time.RFC3339),
	}
	if h.schedule != nil {
		if next, ok := h.schedule.NextRun(); ok {
			resp["next_recurring_run"] = next.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ==================== RECURRING HANDLERS ====================

// GetRecurringRuns lists the latest recurring passes, newest first
func (h *Handler) GetRecurringRuns(c *gin.Context) {
	page, limit, offset := utils.PaginationParams(c)

	runs, total, err := h.runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		logger.FromGin(c).Error("failed to list recurring runs", zap.Error(err))
		utils.RespondWithError(c, http.StatusInternalServerError, utils.ErrCodeDatabaseError, "Failed to fetch recurring runs")
		return
	}

	utils.PaginatedResponse(c, runs, total, page, limit)
}

// ==================== PUBLIC INVOICE ====================

type publicInvoice struct {
	*models.Invoice
	Items []models.InvoiceItem `json:"items"`
}

// GetInvoiceByToken returns the invoice a signed view link points at (public)
func (h *Handler) GetInvoiceByToken(c *gin.Context) {
	claims, err := h.links.Verify(c.Param("token"))
	if err != nil {
		utils.RespondWithError(c, http.StatusNotFound, utils.ErrCodeNotFound, "Invoice not found")
		return
	}

	ctx := c.Request.Context()
	invoice, err := h.invoices.GetInvoice(ctx, claims.InvoiceID)
	if err != nil || invoice.UserID != claims.UserID {
		handleInvoiceError(c, err)
		return
	}

	items, err := h.invoices.GetInvoiceItems(ctx, invoice.ID)
	if err != nil {
		handleInvoiceError(c, err)
		return
	}

	utils.RespondWithSuccess(c, publicInvoice{Invoice: invoice, Items: items})
}

// handleInvoiceError handles invoice-specific errors
func handleInvoiceError(c *gin.Context, err error) {
	switch {
	case err == nil, errors.Is(err, services.ErrInvoiceNotFound):
		utils.RespondWithNotFound(c, "Invoice")
	default:
		logger.FromGin(c).Error("failed to load invoice", zap.Error(err))
		utils.RespondWithError(c, http.StatusInternalServerError, utils.ErrCodeInternalError, "Failed to load invoice")
	}
}
