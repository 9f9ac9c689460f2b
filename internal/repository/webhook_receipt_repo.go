package repository

import (
	"coursely/internal/models"

	"gorm.io/gorm"
)

type WebhookReceiptRepository struct {
	db *gorm.DB
}

func NewWebhookReceiptRepository(db *gorm.DB) *WebhookReceiptRepository {
	return &WebhookReceiptRepository{db: db}
}

func (r *WebhookReceiptRepository) Create(rec *models.WebhookReceipt) error {
	return r.db.Create(rec).Error
}

func (r *WebhookReceiptRepository) CountByPayment(paymentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookReceipt{}).Where("payment_id = ?", paymentID).Count(&count).Error
	return count, err
}

func (r *WebhookReceiptRepository) ListByPayment(paymentID uint) ([]models.WebhookReceipt, error) {
	var out []models.WebhookReceipt
	err := r.db.Where("payment_id = ?", paymentID).Order("processed_at ASC").Find(&out).Error
	return out, err
}
