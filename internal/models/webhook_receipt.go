package models

import (
	"time"
)

// WebhookReceipt records one processed gateway notification. Duplicate
// deliveries each get their own row, so the receipt count per payment is
// the delivery count.
type WebhookReceipt struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PaymentID    uint      `gorm:"not null;index" json:"payment_id"`
	GatewayTxnID string    `gorm:"size:64" json:"gateway_txn_id"`
	Success      bool      `json:"success"`
	Applied      bool      `json:"applied"` // false for idempotent no-ops
	Attempts     int       `gorm:"default:1" json:"attempts"` // delivery ordinal for the payment
	LastError    *string   `gorm:"size:255" json:"last_error"`
	ProcessedAt  time.Time `json:"processed_at"`
	CreatedAt    time.Time `json:"created_at"`

	Payment Payment `gorm:"foreignKey:PaymentID" json:"-"`
}

func (WebhookReceipt) TableName() string {
	return "webhook_receipts"
}
