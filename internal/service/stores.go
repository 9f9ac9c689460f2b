package service

import (
	"time"

	"coursely/internal/models"
)

// Store interfaces the engine depends on. The gorm repositories satisfy them;
// tests use in-memory fakes. All status transitions are conditional updates
// inside the store, so the engine never acts on cached state.

type PaymentStore interface {
	CreatePending(p *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByGatewayOrderID(gatewayOrderID string) (*models.Payment, error)
	GetByOrderRef(ref string) (*models.Payment, error)
	MarkInitiated(id uint, gatewayOrderID, rawResponse string) error
	ClaimProcessing(id uint) (bool, error)
	MarkFailed(id uint, from []string, reason, rawPayload string) (bool, error)
	MarkCancelled(id uint, reason string) (bool, error)
	Reopen(id uint) (bool, error)
	CompleteAndEnroll(id uint, txnID, rawPayload string) (bool, error)
	OverrideStatus(id uint, expect, target, reason string) (bool, error)
	ListStalePending(cutoff time.Time) ([]models.Payment, error)
	ListStaleProcessing(cutoff time.Time) ([]models.Payment, error)
	ListByUser(userID uint) ([]models.Payment, error)
}

type CourseStore interface {
	GetByID(id uint) (*models.Course, error)
}

type EnrollmentStore interface {
	FindByUserCourse(userID, courseID uint) (*models.Enrollment, error)
	Create(e *models.Enrollment) error
	Update(e *models.Enrollment) error
	ListByUser(userID uint) ([]models.Enrollment, error)
}

type ReceiptStore interface {
	Create(rec *models.WebhookReceipt) error
	CountByPayment(paymentID uint) (int64, error)
}

type AuditStore interface {
	Create(a *models.AuditLog) error
}
