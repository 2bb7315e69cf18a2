package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PEIStatusActive   = "ACTIVE"
	PEIStatusExpired  = "EXPIRED"
	PEIStatusInactive = "INACTIVE"
)

// PEI is an individualized education plan, generated for a 3-month window.
// Renewal creates a new row with Version+1 and flips the old one to INACTIVE.
type PEI struct {
	gorm.Model
	Content             string         `json:"content" gorm:"type:text"`
	StudentID           uint           `json:"student_id" gorm:"index;not null"`
	CreatedByID         uint           `json:"created_by_id" gorm:"index;not null"`
	StartDate           time.Time      `json:"start_date"`
	EndDate             time.Time      `json:"end_date"`
	Status              string         `json:"status" gorm:"default:'ACTIVE'"`
	Version             int            `json:"version" gorm:"default:1"`
	IsRenewal           bool           `json:"is_renewal" gorm:"default:false"`
	FormQuestions       datatypes.JSON `json:"form_questions"`
	SecondFormQuestions datatypes.JSON `json:"second_form_questions"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}
