package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"coursely/internal/domain"
	"coursely/internal/models"
	"coursely/internal/repository"
	"coursely/pkg/gateway"

	"gorm.io/gorm"
)

// fakeStore is an in-memory stand-in for the gorm repositories. All
// transitions happen under one mutex, which gives it the same serialization
// guarantee the database's conditional updates give the real store.
type fakeStore struct {
	mu          sync.Mutex
	seq         uint
	payments    map[uint]*models.Payment
	enrollments map[[2]uint]*models.Enrollment
	receipts    []*models.WebhookReceipt
	courses     map[uint]*models.Course

	failNextComplete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:    make(map[uint]*models.Payment),
		enrollments: make(map[[2]uint]*models.Enrollment),
		courses:     make(map[uint]*models.Course),
	}
}

func clonePayment(p *models.Payment) *models.Payment {
	cp := *p
	return &cp
}

func (f *fakeStore) CreatePending(p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.payments {
		if ex.UserID == p.UserID && ex.CourseID == p.CourseID &&
			(ex.Status == domain.PaymentPending || ex.Status == domain.PaymentProcessing) {
			return repository.ErrActivePaymentExists
		}
	}
	if _, ok := f.enrollments[[2]uint{p.UserID, p.CourseID}]; ok {
		return repository.ErrAlreadyEnrolled
	}
	f.seq++
	p.ID = f.seq
	p.Status = domain.PaymentPending
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	f.payments[p.ID] = clonePayment(p)
	return nil
}

func (f *fakeStore) GetByID(id uint) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return clonePayment(p), nil
}

func (f *fakeStore) GetByGatewayOrderID(gatewayOrderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.GatewayOrderID == gatewayOrderID && gatewayOrderID != "" {
			return clonePayment(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) GetByOrderRef(ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderRef == ref {
			return clonePayment(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) MarkInitiated(id uint, gatewayOrderID, rawResponse string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.GatewayOrderID = gatewayOrderID
	p.InitiateBlob += rawResponse + "\n"
	p.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) ClaimProcessing(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentProcessing
	p.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) MarkFailed(id uint, from []string, reason, rawPayload string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || !contains(from, p.Status) {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	r := reason
	p.FailureReason = &r
	if rawPayload != "" {
		p.WebhookBlob += rawPayload + "\n"
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) MarkCancelled(id uint, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentCancelled
	r := reason
	p.FailureReason = &r
	p.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) Reopen(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || (p.Status != domain.PaymentFailed && p.Status != domain.PaymentCancelled) {
		return false, nil
	}
	p.Status = domain.PaymentPending
	p.FailureReason = nil
	p.GatewayTxnID = nil
	p.CompletedAt = nil
	p.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) CompleteAndEnroll(id uint, txnID, rawPayload string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextComplete {
		f.failNextComplete = false
		return false, errors.New("injected transaction failure")
	}
	p, ok := f.payments[id]
	if !ok || p.Status != domain.PaymentProcessing {
		return false, nil
	}
	now := time.Now()
	p.Status = domain.PaymentCompleted
	p.GatewayTxnID = &txnID
	p.CompletedAt = &now
	if rawPayload != "" {
		p.WebhookBlob += rawPayload + "\n"
	}
	p.UpdatedAt = now
	key := [2]uint{p.UserID, p.CourseID}
	if _, exists := f.enrollments[key]; !exists {
		pid := p.ID
		f.enrollments[key] = &models.Enrollment{
			ID:                 uint(len(f.enrollments) + 1),
			UserID:             p.UserID,
			CourseID:           p.CourseID,
			PaymentID:          &pid,
			CompletedLessonIDs: "[]",
			EnrolledAt:         now,
		}
	}
	return true, nil
}

func (f *fakeStore) OverrideStatus(id uint, expect, target, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != expect {
		return false, nil
	}
	now := time.Now()
	p.Status = target
	if target == domain.PaymentCompleted {
		p.CompletedAt = &now
		p.FailureReason = nil
		key := [2]uint{p.UserID, p.CourseID}
		if _, exists := f.enrollments[key]; !exists {
			pid := p.ID
			f.enrollments[key] = &models.Enrollment{
				UserID:             p.UserID,
				CourseID:           p.CourseID,
				PaymentID:          &pid,
				CompletedLessonIDs: "[]",
				EnrolledAt:         now,
			}
		}
	} else {
		r := reason
		p.FailureReason = &r
		if expect == domain.PaymentCompleted {
			delete(f.enrollments, [2]uint{p.UserID, p.CourseID})
		}
	}
	p.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) ListStalePending(cutoff time.Time) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.Status == domain.PaymentPending && p.UpdatedAt.Before(cutoff) {
			out = append(out, *clonePayment(p))
		}
	}
	return out, nil
}

func (f *fakeStore) ListStaleProcessing(cutoff time.Time) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.Status == domain.PaymentProcessing && p.UpdatedAt.Before(cutoff) {
			out = append(out, *clonePayment(p))
		}
	}
	return out, nil
}

func (f *fakeStore) ListByUser(userID uint) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *clonePayment(p))
		}
	}
	return out, nil
}

// EnrollmentStore

func (f *fakeStore) FindByUserCourse(userID, courseID uint) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[[2]uint{userID, courseID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) Create(e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{e.UserID, e.CourseID}
	if _, ok := f.enrollments[key]; ok {
		return errors.New("duplicate enrollment")
	}
	e.ID = uint(len(f.enrollments) + 1)
	cp := *e
	f.enrollments[key] = &cp
	return nil
}

func (f *fakeStore) Update(e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.enrollments[[2]uint{e.UserID, e.CourseID}] = &cp
	return nil
}

func (f *fakeStore) ListByUser2(userID uint) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Enrollment
	for _, e := range f.enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) enrollmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enrollments)
}

// CourseStore

func (f *fakeStore) GetCourse(id uint) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

// ReceiptStore

func (f *fakeStore) CreateReceipt(rec *models.WebhookReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uint(len(f.receipts) + 1)
	cp := *rec
	f.receipts = append(f.receipts, &cp)
	return nil
}

func (f *fakeStore) CountByPayment(paymentID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.receipts {
		if r.PaymentID == paymentID {
			n++
		}
	}
	return n, nil
}

// Interface adapters: the fake is one struct, the service wants separate
// stores with overlapping method names.

type fakeEnrollments struct{ *fakeStore }

func (f fakeEnrollments) ListByUser(userID uint) ([]models.Enrollment, error) {
	return f.fakeStore.ListByUser2(userID)
}

type fakeCourses struct{ *fakeStore }

func (f fakeCourses) GetByID(id uint) (*models.Course, error) {
	return f.fakeStore.GetCourse(id)
}

type fakeReceipts struct{ *fakeStore }

func (f fakeReceipts) Create(rec *models.WebhookReceipt) error {
	return f.fakeStore.CreateReceipt(rec)
}

// Test-only knobs for aging rows into sweeper/backfill windows.

func (f *fakeStore) setCreatedAt(id uint, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id].CreatedAt = t
}

func (f *fakeStore) setUpdatedAt(id uint, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id].UpdatedAt = t
}

func (f *fakeStore) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payments)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// fakeGateway records checkout requests and serves canned inquiry results.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int64
	requests []gateway.CheckoutRequest
	failNext error
	timeout  bool
	inquiry  map[string]*gateway.Callback
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{inquiry: make(map[string]*gateway.Callback)}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "request timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (f *fakeGateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.timeout {
		f.timeout = false
		return nil, timeoutErr{}
	}
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.seq++
	id := 1000 + f.seq
	return &gateway.Checkout{
		GatewayOrderID: strconv.FormatInt(id, 10),
		PaymentKey:     fmt.Sprintf("key-%d", id),
		RedirectURL:    fmt.Sprintf("https://gw.test/checkout/%d", id),
		Raw:            fmt.Sprintf(`{"id":%d}`, id),
	}, nil
}

func (f *fakeGateway) ParseCallback(raw []byte) (*gateway.Callback, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) VerifySignature(cb *gateway.Callback, provided string) bool {
	return provided == "valid"
}

func (f *fakeGateway) InquireTransaction(ctx context.Context, merchantOrderRef string) (*gateway.Callback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cb, ok := f.inquiry[merchantOrderRef]
	if !ok {
		return nil, gateway.ErrTransactionNotFound
	}
	return cb, nil
}

func (f *fakeGateway) lastRequest() gateway.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}
