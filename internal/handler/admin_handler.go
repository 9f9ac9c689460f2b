package handler

import (
	"net/http"
	"strconv"
	"time"

	"coursely/internal/middleware"
	"coursely/internal/repository"
	"coursely/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	paymentSvc  *service.PaymentService
	paymentRepo *repository.PaymentRepository
	receiptRepo *repository.WebhookReceiptRepository
}

func NewAdminHandler(paymentSvc *service.PaymentService, paymentRepo *repository.PaymentRepository, receiptRepo *repository.WebhookReceiptRepository) *AdminHandler {
	return &AdminHandler{paymentSvc: paymentSvc, paymentRepo: paymentRepo, receiptRepo: receiptRepo}
}

// Override forces a payment status, carrying the enrollment side effects.
// It is the only path that can move a COMPLETED payment.
func (h *AdminHandler) Override(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, ok := paymentID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=COMPLETED CANCELLED FAILED"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be COMPLETED, CANCELLED or FAILED"})
		return
	}
	if req.Reason == "" {
		req.Reason = "administrative override"
	}
	view, err := h.paymentSvc.Override(id, req.Status, req.Reason, adminID)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Sweep triggers the abandonment sweep on demand (the sweeper also runs it
// on its own schedule).
func (h *AdminHandler) Sweep(c *gin.Context) {
	res, err := h.paymentSvc.Sweep(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Receipts lists the webhook deliveries recorded for a payment, in
// processing order. The receipt trail is the first thing to check when a
// payment and the gateway dashboard disagree.
func (h *AdminHandler) Receipts(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	receipts, err := h.receiptRepo.ListByPayment(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list receipts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

func (h *AdminHandler) ListPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	payments, err := h.paymentRepo.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
