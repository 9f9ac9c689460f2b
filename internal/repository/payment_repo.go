package repository

import (
	"errors"
	"time"

	"coursely/internal/domain"
	"coursely/internal/models"

	"gorm.io/gorm"
)

var (
	ErrActivePaymentExists = errors.New("an active payment already exists for this course")
	ErrAlreadyEnrolled     = errors.New("user is already enrolled in this course")
)

// PaymentRepository owns the payments table. Every status change goes through
// a conditional update (WHERE id = ? AND status IN ?), so two concurrent
// transition attempts on the same row race and exactly one wins.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePending inserts a new PENDING payment after re-checking, inside one
// transaction, that no other PENDING/PROCESSING payment and no enrollment
// exist for the (user, course) pair.
func (r *PaymentRepository) CreatePending(p *models.Payment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Payment{}).
			Where("user_id = ? AND course_id = ? AND status IN ?",
				p.UserID, p.CourseID, []string{domain.PaymentPending, domain.PaymentProcessing}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrActivePaymentExists
		}
		err = tx.Model(&models.Enrollment{}).
			Where("user_id = ? AND course_id = ?", p.UserID, p.CourseID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyEnrolled
		}
		p.Status = domain.PaymentPending
		return tx.Create(p).Error
	})
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayOrderID(gatewayOrderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("gateway_order_id = ?", gatewayOrderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByOrderRef(ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("order_ref = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkInitiated stores the gateway order id and appends the raw initiate
// response. The status is untouched: a gateway failure after the row exists
// leaves it PENDING for an immediate retry.
func (r *PaymentRepository) MarkInitiated(id uint, gatewayOrderID, rawResponse string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"gateway_order_id": gatewayOrderID,
		"initiate_blob":    gorm.Expr("CONCAT(IFNULL(initiate_blob, ''), ?)", rawResponse+"\n"),
	}).Error
}

// ClaimProcessing moves PENDING -> PROCESSING. Returns false when another
// transition got there first.
func (r *PaymentRepository) ClaimProcessing(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Update("status", domain.PaymentProcessing)
	return res.RowsAffected > 0, res.Error
}

// MarkFailed moves the payment to FAILED from any of the given prior
// statuses. rawPayload, when non-empty, is appended to the webhook blob.
func (r *PaymentRepository) MarkFailed(id uint, from []string, reason, rawPayload string) (bool, error) {
	updates := map[string]interface{}{
		"status":         domain.PaymentFailed,
		"failure_reason": reason,
	}
	if rawPayload != "" {
		updates["webhook_blob"] = gorm.Expr("CONCAT(IFNULL(webhook_blob, ''), ?)", rawPayload+"\n")
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkCancelled moves PENDING -> CANCELLED.
func (r *PaymentRepository) MarkCancelled(id uint, reason string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(map[string]interface{}{
			"status":         domain.PaymentCancelled,
			"failure_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

// Reopen moves FAILED/CANCELLED back to PENDING for a manual retry, clearing
// the failure reason and the stale transaction id. The order ref is kept: a
// retry reuses the payment's identity as the merchant order reference.
func (r *PaymentRepository) Reopen(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentFailed, domain.PaymentCancelled}).
		Updates(map[string]interface{}{
			"status":         domain.PaymentPending,
			"failure_reason": nil,
			"gateway_txn_id": nil,
			"completed_at":   nil,
		})
	return res.RowsAffected > 0, res.Error
}

// CompleteAndEnroll moves PROCESSING -> COMPLETED and creates the enrollment
// in the same transaction, so a payment can never be observed completed but
// not enrolled. If an enrollment already exists (free-path race) it is kept.
func (r *PaymentRepository) CompleteAndEnroll(id uint, txnID, rawPayload string) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":         domain.PaymentCompleted,
			"gateway_txn_id": txnID,
			"completed_at":   now,
		}
		if rawPayload != "" {
			updates["webhook_blob"] = gorm.Expr("CONCAT(IFNULL(webhook_blob, ''), ?)", rawPayload+"\n")
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", id, domain.PaymentProcessing).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		var p models.Payment
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		var existing models.Enrollment
		err := tx.Where("user_id = ? AND course_id = ?", p.UserID, p.CourseID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&models.Enrollment{
			UserID:             p.UserID,
			CourseID:           p.CourseID,
			PaymentID:          &p.ID,
			ProgressPercent:    0,
			CompletedLessonIDs: "[]",
			EnrolledAt:         now,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// OverrideStatus is the administrative status correction. It uses the same
// conditional-update guard as every other transition (expect is the status
// the admin saw), and carries the enrollment side effects: forcing COMPLETED
// creates the enrollment, forcing away from COMPLETED removes it.
func (r *PaymentRepository) OverrideStatus(id uint, expect, target, reason string) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{"status": target}
		if target == domain.PaymentCompleted {
			updates["completed_at"] = now
			updates["failure_reason"] = nil
		} else {
			updates["failure_reason"] = reason
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", id, expect).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		var p models.Payment
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		switch {
		case target == domain.PaymentCompleted:
			var existing models.Enrollment
			err := tx.Where("user_id = ? AND course_id = ?", p.UserID, p.CourseID).First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.Create(&models.Enrollment{
				UserID:             p.UserID,
				CourseID:           p.CourseID,
				PaymentID:          &p.ID,
				ProgressPercent:    0,
				CompletedLessonIDs: "[]",
				EnrolledAt:         now,
			}).Error
		case expect == domain.PaymentCompleted:
			return tx.Where("user_id = ? AND course_id = ? AND payment_id = ?",
				p.UserID, p.CourseID, p.ID).
				Delete(&models.Enrollment{}).Error
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListStalePending returns PENDING payments untouched since the cutoff, for
// the abandonment sweep. Keyed on updated_at, not created_at: a manual retry
// refreshes the row and must restart the abandonment clock.
func (r *PaymentRepository) ListStalePending(cutoff time.Time) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("status = ? AND updated_at < ?", domain.PaymentPending, cutoff).Find(&out).Error
	return out, err
}

// ListStaleProcessing returns PROCESSING payments last touched before the
// cutoff, for the gateway backfill job.
func (r *PaymentRepository) ListStaleProcessing(cutoff time.Time) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("status = ? AND updated_at < ?", domain.PaymentProcessing, cutoff).Find(&out).Error
	return out, err
}

func (r *PaymentRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *PaymentRepository) List(limit, offset int) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}
