package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

type Course struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CategoryID  uint            `gorm:"index" json:"category_id"`
	ProfessorID uint            `gorm:"not null;index" json:"professor_id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency    string          `gorm:"size:3;not null;default:'EGP'" json:"currency"`
	IsPublished bool            `gorm:"default:false;index" json:"is_published"`
	LessonCount int             `gorm:"default:0" json:"lesson_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	Category  Category `gorm:"foreignKey:CategoryID" json:"-"`
	Professor User     `gorm:"foreignKey:ProfessorID" json:"-"`
}

func (Course) TableName() string {
	return "courses"
}

// IsFree reports whether the course requires no payment to enroll.
func (c *Course) IsFree() bool {
	return !c.Price.IsPositive()
}
