package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/creatorhub/payout-service/internal/repository"
	"github.com/creatorhub/payout-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	payoutService *service.PayoutService
	logger        *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler
func NewHTTPHandler(payoutService *service.PayoutService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		payoutService: payoutService,
		logger:        logger,
	}
}

// SetupRoutes configures the HTTP routes
func (h *HTTPHandler) SetupRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		payouts := api.Group("/payouts")
		{
			payouts.POST("", h.DispatchPayout)
			payouts.GET("", h.ListPayouts)
			payouts.GET("/:id", h.GetPayout)
			payouts.POST("/verify", h.VerifyPayout)
		}
	}
}

// Health returns the health status
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "payout-service",
	})
}

// Ready returns the readiness status
func (h *HTTPHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "payout-service",
	})
}

// DispatchPayout routes a withdrawal to its provider rail
func (h *HTTPHandler) DispatchPayout(c *gin.Context) {
	var req model.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	record, err := h.payoutService.Dispatch(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Dispatch failed", zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// GetPayout retrieves a payout record by ID
func (h *HTTPHandler) GetPayout(c *gin.Context) {
	record, err := h.payoutService.GetPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListPayouts lists payout records with optional filters
func (h *HTTPHandler) ListPayouts(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	filter := repository.PayoutFilter{
		Status: model.PayoutStatus(c.Query("status")),
		Method: model.Method(c.Query("method")),
		UserID: c.Query("userId"),
		Limit:  limit,
	}

	records, err := h.payoutService.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": records, "count": len(records)})
}

// VerifyRequest identifies the payout to verify with its owning provider
type VerifyRequest struct {
	Reference string `json:"reference"`
	Method    string `json:"method"`
}

// VerifyPayout polls the owning provider for the payout's current status.
// A verification failure means "unknown, retry later", not a failed
// payout; it is reported as 502 so callers can back off.
func (h *HTTPHandler) VerifyPayout(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.payoutService.Verify(c.Request.Context(), req.Reference, req.Method)
	if err != nil {
		h.logger.Error("Verification failed", zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "retryable": errors.Is(err, model.ErrVerificationFailed)})
		return
	}

	c.JSON(http.StatusOK, result)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedMethod), errors.Is(err, model.ErrInvalidInstrument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthenticationFailed),
		errors.Is(err, model.ErrPayoutFailed),
		errors.Is(err, model.ErrVerificationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
