package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one purchase attempt for a course. The row is never deleted:
// retries reuse it and terminal transitions keep it around as the audit trail.
type Payment struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	UserID   uint            `gorm:"not null;index:idx_payments_user_course" json:"user_id"`
	CourseID uint            `gorm:"not null;index:idx_payments_user_course" json:"course_id"`
	Amount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null" json:"currency"`
	Status   string          `gorm:"size:20;not null;index" json:"status"` // PENDING, PROCESSING, COMPLETED, FAILED, CANCELLED

	// OrderRef is the merchant-assigned order reference. It is minted once at
	// initiation and survives retries, so the gateway always sees the same
	// merchant order id for one purchase attempt.
	OrderRef       string  `gorm:"size:64;uniqueIndex;not null" json:"order_ref"`
	GatewayOrderID string  `gorm:"size:64;index" json:"gateway_order_id"`
	GatewayTxnID   *string `gorm:"size:64" json:"gateway_txn_id"`

	// Raw gateway payloads, append-only. One section per initiate/retry call,
	// one per processed webhook delivery.
	InitiateBlob string `gorm:"type:text" json:"-"`
	WebhookBlob  string `gorm:"type:text" json:"-"`

	FailureReason *string    `gorm:"size:255" json:"failure_reason"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
