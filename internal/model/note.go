package model

import "gorm.io/gorm"

// Note is a teacher observation about a student. Notes feed PEI renewals and
// are purged once a renewal consumes them.
type Note struct {
	gorm.Model
	Content     string `json:"content" gorm:"type:text;not null"`
	StudentID   uint   `json:"student_id" gorm:"index;not null"`
	CreatedByID uint   `json:"created_by_id" gorm:"index;not null"`

	Student Student `json:"-" gorm:"foreignKey:StudentID"`
}
