package models

import (
	"time"
)

// Enrollment grants a student access to a course. For paid courses it is
// created inside the same transaction that marks the Payment COMPLETED.
// Revocation deletes the row; the Payment keeps the audit trail.
type Enrollment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"user_id"`
	CourseID           uint      `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"course_id"`
	PaymentID          *uint     `gorm:"index" json:"payment_id"` // nil for free courses
	ProgressPercent    float64   `gorm:"default:0" json:"progress_percent"`
	CompletedLessonIDs string    `gorm:"type:text" json:"completed_lesson_ids"` // JSON array of lesson ids
	TotalWatchSeconds  int64     `gorm:"default:0" json:"total_watch_seconds"`
	EnrolledAt         time.Time `json:"enrolled_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"-"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
