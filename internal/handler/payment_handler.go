package handler

import (
	"errors"
	"net/http"
	"strconv"

	"coursely/internal/middleware"
	"coursely/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentSvc *service.PaymentService
}

func NewPaymentHandler(paymentSvc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Initiate starts a course purchase and returns the gateway redirect URL.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		CourseID  uint   `json:"course_id" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "course_id required"})
		return
	}
	email, _ := c.Get("email")
	billing := service.BillingInfo{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     asString(email),
		Phone:     req.Phone,
	}
	res, err := h.paymentSvc.Initiate(c.Request.Context(), userID, req.CourseID, billing)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id":   res.PaymentID,
		"order_ref":    res.OrderRef,
		"redirect_url": res.RedirectURL,
	})
}

// Retry re-opens a failed or cancelled payment.
func (h *PaymentHandler) Retry(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, ok := paymentID(c)
	if !ok {
		return
	}
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	_ = c.ShouldBindJSON(&req)
	email, _ := c.Get("email")
	billing := service.BillingInfo{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     asString(email),
		Phone:     req.Phone,
	}
	res, err := h.paymentSvc.Retry(c.Request.Context(), id, userID, middleware.GetRole(c), billing)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":   res.PaymentID,
		"redirect_url": res.RedirectURL,
	})
}

func (h *PaymentHandler) Cancel(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, ok := paymentID(c)
	if !ok {
		return
	}
	status, err := h.paymentSvc.Cancel(id, userID, middleware.GetRole(c))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, ok := paymentID(c)
	if !ok {
		return
	}
	view, err := h.paymentSvc.GetStatus(id, userID, middleware.GetRole(c))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *PaymentHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	views, err := h.paymentSvc.ListMine(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": views})
}

func paymentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return 0, false
	}
	return uint(id), true
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// respondPaymentError maps taxonomy errors to HTTP codes plus a code and a
// next-action hint for the UI.
func respondPaymentError(c *gin.Context, err error) {
	type mapped struct {
		status int
		code   string
		hint   string
	}
	var m mapped
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		m = mapped{http.StatusNotFound, "NOT_FOUND", "check the course and try again"}
	case errors.Is(err, service.ErrPaymentNotFound):
		m = mapped{http.StatusNotFound, "NOT_FOUND", "check the payment id"}
	case errors.Is(err, service.ErrFreeCourse):
		m = mapped{http.StatusBadRequest, "FREE_COURSE", "use the free enrollment endpoint"}
	case errors.Is(err, service.ErrAlreadyEnrolled):
		m = mapped{http.StatusConflict, "ALREADY_ENROLLED", "open the course from your enrollments"}
	case errors.Is(err, service.ErrPendingPaymentExists):
		m = mapped{http.StatusConflict, "PENDING_PAYMENT_EXISTS", "finish or cancel the pending payment first"}
	case errors.Is(err, service.ErrOwnCourse):
		m = mapped{http.StatusConflict, "OWN_COURSE", "professors cannot purchase their own courses"}
	case errors.Is(err, service.ErrNotRetryable):
		m = mapped{http.StatusConflict, "NOT_RETRYABLE", "only failed or cancelled payments can be retried"}
	case errors.Is(err, service.ErrNotCancellable):
		m = mapped{http.StatusConflict, "NOT_CANCELLABLE", "the payment already left the pending state"}
	case errors.Is(err, service.ErrForbidden):
		m = mapped{http.StatusForbidden, "FORBIDDEN", "you can only access your own payments"}
	case errors.Is(err, service.ErrGateway):
		m = mapped{http.StatusBadGateway, "GATEWAY_ERROR", "retry in a moment or contact support"}
	case errors.Is(err, service.ErrConflict):
		m = mapped{http.StatusConflict, "CONFLICT", "the payment changed concurrently, re-read and retry"}
	default:
		m = mapped{http.StatusInternalServerError, "INTERNAL", "contact support"}
	}
	c.JSON(m.status, gin.H{"error": err.Error(), "code": m.code, "hint": m.hint})
}
