package repository

import (
	"coursely/internal/models"

	"gorm.io/gorm"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) GetByID(id uint) (*models.Course, error) {
	var c models.Course
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) ListPublished(limit, offset int) ([]models.Course, error) {
	var out []models.Course
	err := r.db.Where("is_published = ?", true).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}
