package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"coursely/config"
	"coursely/internal/domain"
	"coursely/internal/models"
	"coursely/internal/repository"
	"coursely/pkg/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService is the reconciliation engine: it owns every status
// transition of a Payment, from initiation through gateway confirmation,
// manual retry/cancel, the abandonment sweep and the admin override.
type PaymentService struct {
	payments PaymentStore
	courses  CourseStore
	receipts ReceiptStore
	audits   AuditStore
	gateway  gateway.Client
	cfg      *config.PaymentConfig
}

func NewPaymentService(payments PaymentStore, courses CourseStore, receipts ReceiptStore, audits AuditStore, gw gateway.Client, cfg *config.PaymentConfig) *PaymentService {
	return &PaymentService{
		payments: payments,
		courses:  courses,
		receipts: receipts,
		audits:   audits,
		gateway:  gw,
		cfg:      cfg,
	}
}

// BillingInfo is passed through to the gateway checkout; the buyer's email
// comes from the session, the rest from the checkout form.
type BillingInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type InitiateResult struct {
	PaymentID   uint   `json:"payment_id"`
	OrderRef    string `json:"order_ref"`
	RedirectURL string `json:"redirect_url"`
}

// MinorUnits converts a decimal amount to gateway minor units (piasters for
// EGP). Conversion is one-directional; the stored decimal never changes.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Initiate starts a purchase: validates the course, creates the PENDING
// payment atomically with the duplicate/enrollment checks, and asks the
// gateway for a redirect target. A gateway failure after the row exists
// leaves it PENDING and surfaces the error so the caller can retry at once;
// a gateway timeout fails the payment instead (the caller must not be left
// waiting on a row that may or may not be registered upstream).
func (s *PaymentService) Initiate(ctx context.Context, userID, courseID uint, billing BillingInfo) (*InitiateResult, error) {
	course, err := s.courses.GetByID(courseID)
	if err != nil || !course.IsPublished {
		return nil, ErrCourseNotFound
	}
	if course.IsFree() {
		return nil, ErrFreeCourse
	}
	if course.ProfessorID == userID {
		return nil, ErrOwnCourse
	}
	currency := course.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	p := &models.Payment{
		UserID:   userID,
		CourseID: courseID,
		Amount:   course.Price,
		Currency: currency,
		OrderRef: fmt.Sprintf("coursely-%s", uuid.New().String()),
		Status:   domain.PaymentPending,
	}
	if err := s.payments.CreatePending(p); err != nil {
		switch {
		case errors.Is(err, repository.ErrActivePaymentExists):
			return nil, ErrPendingPaymentExists
		case errors.Is(err, repository.ErrAlreadyEnrolled):
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	s.audit(&userID, "payment_initiated", p.ID, course.Title)

	redirectURL, err := s.checkout(ctx, p, course, billing)
	if err != nil {
		if gateway.IsTimeout(err) {
			if _, ferr := s.payments.MarkFailed(p.ID, []string{domain.PaymentPending}, domain.ReasonGatewayTimeout, ""); ferr != nil {
				log.Printf("[PAY] mark failed after timeout payment=%d: %v", p.ID, ferr)
			}
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		// Stays PENDING: the gateway call is idempotent on our order ref, so
		// the caller can retry immediately.
		log.Printf("[PAY] checkout failed payment=%d order_ref=%s: %v", p.ID, p.OrderRef, err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return &InitiateResult{PaymentID: p.ID, OrderRef: p.OrderRef, RedirectURL: redirectURL}, nil
}

func (s *PaymentService) checkout(ctx context.Context, p *models.Payment, course *models.Course, billing BillingInfo) (string, error) {
	co, err := s.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		MerchantOrderRef: p.OrderRef,
		AmountCents:      MinorUnits(p.Amount),
		Currency:         p.Currency,
		ItemName:         course.Title,
		FirstName:        billing.FirstName,
		LastName:         billing.LastName,
		Email:            billing.Email,
		Phone:            billing.Phone,
	})
	if err != nil {
		return "", err
	}
	if err := s.payments.MarkInitiated(p.ID, co.GatewayOrderID, co.Raw); err != nil {
		return "", err
	}
	log.Printf("[PAY] checkout ready payment=%d order_ref=%s gateway_order=%s", p.ID, p.OrderRef, co.GatewayOrderID)
	return co.RedirectURL, nil
}

type ReconcileResult struct {
	PaymentID uint   `json:"payment_id"`
	Status    string `json:"status"`
	Applied   bool   `json:"applied"`
}

// Reconcile applies a verified gateway callback. Duplicate deliveries are
// no-ops: a callback for a payment that is already terminal (or mid-claim by
// a concurrent delivery) records a receipt and reports the current status.
// Completion and enrollment commit in one store transaction.
func (s *PaymentService) Reconcile(cb *gateway.Callback) (*ReconcileResult, error) {
	p, err := s.locate(cb)
	if err != nil {
		return nil, err
	}
	txnID := strconv.FormatInt(cb.TransactionID, 10)

	if domain.IsTerminal(p.Status) {
		s.receipt(p.ID, txnID, cb.Success, false, nil)
		log.Printf("[WEBHOOK] duplicate for terminal payment=%d status=%s txn=%s", p.ID, p.Status, txnID)
		return &ReconcileResult{PaymentID: p.ID, Status: p.Status, Applied: false}, nil
	}

	if p.Status == domain.PaymentPending {
		claimed, err := s.payments.ClaimProcessing(p.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the race: someone else transitioned the row first.
			cur, err := s.payments.GetByID(p.ID)
			if err != nil {
				return nil, ErrPaymentNotFound
			}
			if domain.IsTerminal(cur.Status) {
				s.receipt(p.ID, txnID, cb.Success, false, nil)
				return &ReconcileResult{PaymentID: p.ID, Status: cur.Status, Applied: false}, nil
			}
			// A concurrent delivery holds the claim; let it finish.
			s.receipt(p.ID, txnID, cb.Success, false, nil)
			return &ReconcileResult{PaymentID: p.ID, Status: cur.Status, Applied: false}, nil
		}
	}

	// Holds (or inherited) the PROCESSING claim. Apply the outcome; the
	// conditional update means a concurrent winner turns this into a no-op.
	var applied bool
	var status string
	if cb.Success {
		applied, err = s.payments.CompleteAndEnroll(p.ID, txnID, cb.Raw)
		status = domain.PaymentCompleted
	} else {
		applied, err = s.payments.MarkFailed(p.ID, []string{domain.PaymentProcessing}, domain.ReasonDeclined, cb.Raw)
		status = domain.PaymentFailed
	}
	if err != nil {
		// The transition rolled back; the payment stays PROCESSING and the
		// backfill job (or a gateway redelivery) picks it up.
		msg := err.Error()
		s.receipt(p.ID, txnID, cb.Success, false, &msg)
		return nil, err
	}
	if !applied {
		cur, gerr := s.payments.GetByID(p.ID)
		if gerr == nil {
			status = cur.Status
		}
		s.receipt(p.ID, txnID, cb.Success, false, nil)
		return &ReconcileResult{PaymentID: p.ID, Status: status, Applied: false}, nil
	}
	s.receipt(p.ID, txnID, cb.Success, true, nil)
	s.audit(&p.UserID, "payment_"+statusAction(status), p.ID, txnID)
	log.Printf("[WEBHOOK] payment=%d -> %s txn=%s", p.ID, status, txnID)
	return &ReconcileResult{PaymentID: p.ID, Status: status, Applied: true}, nil
}

func (s *PaymentService) locate(cb *gateway.Callback) (*models.Payment, error) {
	if cb.GatewayOrderID != 0 {
		p, err := s.payments.GetByGatewayOrderID(strconv.FormatInt(cb.GatewayOrderID, 10))
		if err == nil {
			return p, nil
		}
	}
	if cb.MerchantOrderID != "" {
		p, err := s.payments.GetByOrderRef(cb.MerchantOrderID)
		if err == nil {
			return p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

type RetryResult struct {
	PaymentID   uint   `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

// Retry re-opens a FAILED or CANCELLED payment and mints a fresh redirect
// target. The payment row and its merchant order reference are reused; only
// the gateway-side order and key are new.
func (s *PaymentService) Retry(ctx context.Context, paymentID, requesterID uint, role string, billing BillingInfo) (*RetryResult, error) {
	p, err := s.authorized(paymentID, requesterID, role)
	if err != nil {
		return nil, err
	}
	ok, err := s.payments.Reopen(p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	s.audit(&requesterID, "payment_retried", p.ID, "")
	course, err := s.courses.GetByID(p.CourseID)
	if err != nil {
		return nil, ErrCourseNotFound
	}
	redirectURL, err := s.checkout(ctx, p, course, billing)
	if err != nil {
		reason := domain.ReasonGatewayError
		if gateway.IsTimeout(err) {
			reason = domain.ReasonGatewayTimeout
		}
		if _, ferr := s.payments.MarkFailed(p.ID, []string{domain.PaymentPending}, reason, ""); ferr != nil {
			log.Printf("[PAY] mark failed after retry error payment=%d: %v", p.ID, ferr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return &RetryResult{PaymentID: p.ID, RedirectURL: redirectURL}, nil
}

// Cancel moves a PENDING payment to CANCELLED. Anything else (including a
// payment mid-completion) is rejected with ErrNotCancellable.
func (s *PaymentService) Cancel(paymentID, requesterID uint, role string) (string, error) {
	p, err := s.authorized(paymentID, requesterID, role)
	if err != nil {
		return "", err
	}
	reason := domain.ReasonCancelledByUser
	if role == domain.RoleAdmin && requesterID != p.UserID {
		reason = domain.ReasonCancelledByAdmin
	}
	ok, err := s.payments.MarkCancelled(p.ID, reason)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotCancellable
	}
	s.audit(&requesterID, "payment_cancelled", p.ID, reason)
	log.Printf("[PAY] payment=%d cancelled (%s)", p.ID, reason)
	return domain.PaymentCancelled, nil
}

// PaymentView is the read model returned to the UI layer.
type PaymentView struct {
	ID            uint       `json:"id"`
	CourseID      uint       `json:"course_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	OrderRef      string     `json:"order_ref"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (s *PaymentService) GetStatus(paymentID, requesterID uint, role string) (*PaymentView, error) {
	p, err := s.authorized(paymentID, requesterID, role)
	if err != nil {
		return nil, err
	}
	return toView(p), nil
}

func (s *PaymentService) ListMine(userID uint) ([]PaymentView, error) {
	payments, err := s.payments.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentView, 0, len(payments))
	for i := range payments {
		out = append(out, *toView(&payments[i]))
	}
	return out, nil
}

type SweepResult struct {
	CleanedCount int `json:"cleaned_count"`
	ErrorCount   int `json:"error_count"`
}

// Sweep cancels PENDING payments idle past the abandonment threshold. Each
// cancellation is a conditional update, so a sweep racing a webhook or a
// user action simply loses on rows that transitioned first.
func (s *PaymentService) Sweep(now time.Time) (*SweepResult, error) {
	stale, err := s.payments.ListStalePending(now.Add(-s.cfg.AbandonAfter))
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	for i := range stale {
		ok, err := s.payments.MarkCancelled(stale[i].ID, domain.ReasonAbandoned)
		if err != nil {
			log.Printf("[SWEEP] cancel payment=%d: %v", stale[i].ID, err)
			res.ErrorCount++
			continue
		}
		if ok {
			res.CleanedCount++
			s.audit(nil, "payment_swept", stale[i].ID, domain.ReasonAbandoned)
		}
	}
	if res.CleanedCount > 0 || res.ErrorCount > 0 {
		log.Printf("[SWEEP] cleaned=%d errors=%d", res.CleanedCount, res.ErrorCount)
	}
	return res, nil
}

// Backfill recovers PROCESSING payments whose completion never committed
// (webhook lost after the claim, or the completion transaction failed). It
// asks the gateway for the transaction outcome and applies the same
// conditional transition the webhook path uses. Payments the gateway cannot
// account for past the hard-cleanup window are failed outright.
func (s *PaymentService) Backfill(ctx context.Context, now time.Time) (*SweepResult, error) {
	stuck, err := s.payments.ListStaleProcessing(now.Add(-s.cfg.BackfillAfter))
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	for i := range stuck {
		p := &stuck[i]
		cb, err := s.gateway.InquireTransaction(ctx, p.OrderRef)
		if err != nil {
			if p.UpdatedAt.Before(now.Add(-s.cfg.HardCleanupAfter)) {
				if ok, ferr := s.payments.MarkFailed(p.ID, []string{domain.PaymentProcessing}, domain.ReasonAbandoned, ""); ferr == nil && ok {
					log.Printf("[BACKFILL] payment=%d unaccounted past hard window, failed", p.ID)
					res.CleanedCount++
				}
				continue
			}
			log.Printf("[BACKFILL] inquiry payment=%d order_ref=%s: %v", p.ID, p.OrderRef, err)
			res.ErrorCount++
			continue
		}
		txnID := strconv.FormatInt(cb.TransactionID, 10)
		var ok bool
		if cb.Success {
			ok, err = s.payments.CompleteAndEnroll(p.ID, txnID, cb.Raw)
		} else if !cb.Pending {
			ok, err = s.payments.MarkFailed(p.ID, []string{domain.PaymentProcessing}, domain.ReasonDeclined, cb.Raw)
		} else {
			continue // gateway still pending; leave it for the next run
		}
		if err != nil {
			log.Printf("[BACKFILL] apply payment=%d: %v", p.ID, err)
			res.ErrorCount++
			continue
		}
		if ok {
			log.Printf("[BACKFILL] payment=%d reconciled from inquiry txn=%s success=%v", p.ID, txnID, cb.Success)
			res.CleanedCount++
		}
	}
	return res, nil
}

// Override is the administrative status correction. It goes through the same
// conditional-update discipline as every other transition: the expected
// status is re-read and the swap retried once if a concurrent transition
// (e.g. an in-flight webhook) got there first.
func (s *PaymentService) Override(paymentID uint, target, reason string, adminID uint) (*PaymentView, error) {
	switch target {
	case domain.PaymentCompleted, domain.PaymentCancelled, domain.PaymentFailed:
	default:
		return nil, fmt.Errorf("%w: invalid override target %q", ErrConflict, target)
	}
	p, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, ErrPaymentNotFound
	}
	for attempt := 0; attempt < 2; attempt++ {
		if p.Status == target {
			return toView(p), nil
		}
		ok, err := s.payments.OverrideStatus(p.ID, p.Status, target, reason)
		if err != nil {
			return nil, err
		}
		if ok {
			s.audit(&adminID, "payment_overridden", p.ID, fmt.Sprintf("%s -> %s", p.Status, target))
			log.Printf("[ADMIN] payment=%d override %s -> %s by admin=%d", p.ID, p.Status, target, adminID)
			return s.GetStatus(p.ID, adminID, domain.RoleAdmin)
		}
		if p, err = s.payments.GetByID(paymentID); err != nil {
			return nil, ErrPaymentNotFound
		}
	}
	return nil, ErrConflict
}

func (s *PaymentService) authorized(paymentID, requesterID uint, role string) (*models.Payment, error) {
	p, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, ErrPaymentNotFound
	}
	if p.UserID != requesterID && role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *PaymentService) receipt(paymentID uint, txnID string, success, applied bool, lastError *string) {
	// Attempts is the delivery ordinal: prior receipts for this payment plus
	// this one.
	attempts := 1
	if n, err := s.receipts.CountByPayment(paymentID); err == nil {
		attempts = int(n) + 1
	}
	rec := &models.WebhookReceipt{
		PaymentID:    paymentID,
		GatewayTxnID: txnID,
		Success:      success,
		Applied:      applied,
		Attempts:     attempts,
		LastError:    lastError,
		ProcessedAt:  time.Now(),
	}
	if err := s.receipts.Create(rec); err != nil {
		log.Printf("[WEBHOOK] receipt payment=%d: %v", paymentID, err)
	}
}

func (s *PaymentService) audit(userID *uint, action string, paymentID uint, detail string) {
	if s.audits == nil {
		return
	}
	_ = s.audits.Create(&models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "payment",
		ResourceID: strconv.FormatUint(uint64(paymentID), 10),
		Detail:     detail,
	})
}

func toView(p *models.Payment) *PaymentView {
	return &PaymentView{
		ID:            p.ID,
		CourseID:      p.CourseID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        p.Status,
		OrderRef:      p.OrderRef,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

func statusAction(status string) string {
	switch status {
	case domain.PaymentCompleted:
		return "completed"
	case domain.PaymentFailed:
		return "failed"
	default:
		return "transitioned"
	}
}
