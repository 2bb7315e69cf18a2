package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WeeklyPlan struct {
	gorm.Model
	Content       string         `json:"content" gorm:"type:text"`
	StudentID     uint           `json:"student_id" gorm:"index;not null"`
	CreatedByID   uint           `json:"created_by_id" gorm:"index;not null"`
	WeekStart     time.Time      `json:"week_start"`
	WeekEnd       time.Time      `json:"week_end"`
	FormQuestions datatypes.JSON `json:"form_questions"`

	Student Student `json:"-" gorm:"foreignKey:StudentID"`
}
