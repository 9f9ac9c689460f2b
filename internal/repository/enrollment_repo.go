package repository

import (
	"coursely/internal/models"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) FindByUserCourse(userID, courseID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := r.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) Create(e *models.Enrollment) error {
	return r.db.Create(e).Error
}

func (r *EnrollmentRepository) Update(e *models.Enrollment) error {
	return r.db.Save(e).Error
}

func (r *EnrollmentRepository) ListByUser(userID uint) ([]models.Enrollment, error) {
	var out []models.Enrollment
	err := r.db.Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&out).Error
	return out, err
}
