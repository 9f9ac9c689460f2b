package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"coursely/internal/service"
	"coursely/pkg/gateway"

	"github.com/gin-gonic/gin"
)

// PaymobWebhookHandler receives transaction callbacks. The wire response is
// always a success envelope once the body could be read: internal failures
// are logged and recorded, never surfaced to the sender, so a gateway retry
// storm cannot amplify an internal problem.
type PaymobWebhookHandler struct {
	paymentSvc *service.PaymentService
	gw         gateway.Client
}

func NewPaymobWebhookHandler(paymentSvc *service.PaymentService, gw gateway.Client) *PaymobWebhookHandler {
	return &PaymobWebhookHandler{paymentSvc: paymentSvc, gw: gw}
}

func (h *PaymobWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	cb, err := h.gw.ParseCallback(body)
	if err != nil {
		log.Printf("[WEBHOOK] malformed payload: %v", err)
		ack(c)
		return
	}
	sig := c.Query("hmac")
	if sig == "" {
		sig = c.GetHeader("X-Paymob-Signature")
	}
	if !h.gw.VerifySignature(cb, sig) {
		// Rejected before any state mutation.
		log.Printf("[WEBHOOK] signature verification failed txn=%d order=%d", cb.TransactionID, cb.GatewayOrderID)
		ack(c)
		return
	}
	res, err := h.paymentSvc.Reconcile(cb)
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		// Acknowledge so the sender stops retrying a dead reference; the
		// mismatch is an operator problem, not a delivery problem.
		log.Printf("[WEBHOOK] no payment for order=%d merchant_ref=%s", cb.GatewayOrderID, cb.MerchantOrderID)
	case err != nil:
		log.Printf("[WEBHOOK] reconcile txn=%d: %v", cb.TransactionID, err)
	default:
		log.Printf("[WEBHOOK] payment=%d status=%s applied=%v", res.PaymentID, res.Status, res.Applied)
	}
	ack(c)
}

func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"received": true})
}
