package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	StudentStatusActive   = "ACTIVE"
	StudentStatusInactive = "INACTIVE"
)

type Student struct {
	gorm.Model
	FullName       string    `json:"full_name" gorm:"not null"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	PhotoURL       string    `json:"photo_url"`
	Gender         string    `json:"gender"`
	CID            string    `json:"cid"`
	SpecialNeeds   string    `json:"special_needs"`
	ParentGuardian string    `json:"parent_guardian"`
	HasCamping     bool      `json:"has_camping" gorm:"default:false"`
	Status         string    `json:"status" gorm:"default:'ACTIVE'"`
	SchoolID       uint      `json:"school_id" gorm:"index;not null"`
	CreatedByID    uint      `json:"created_by_id" gorm:"index;not null"`

	School              School               `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	MedicalConditions   []MedicalCondition   `json:"medical_conditions,omitempty"`
	ClassroomAssignment *ClassroomAssignment `json:"classroom_assignment,omitempty"`
	PEIs                []PEI                `json:"peis,omitempty"`
}

type MedicalCondition struct {
	gorm.Model
	StudentID uint   `json:"student_id" gorm:"index;not null"`
	Condition string `json:"condition" gorm:"not null"`
	Age       int    `json:"age"`
}
