package model

import "gorm.io/gorm"

type School struct {
	gorm.Model
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Address     string `json:"address"`
	CreatedByID uint   `json:"created_by_id" gorm:"index;not null"`

	Classrooms []Classroom `json:"classrooms,omitempty"`
}

type Classroom struct {
	gorm.Model
	Name        string `json:"name" gorm:"not null"`
	Period      string `json:"period"`
	SchoolID    uint   `json:"school_id" gorm:"index;not null"`
	CreatedByID uint   `json:"created_by_id" gorm:"index;not null"`

	School School `json:"-" gorm:"foreignKey:SchoolID"`
}

// ClassroomAssignment binds a student to a classroom and the teacher in charge.
// A student has at most one assignment.
type ClassroomAssignment struct {
	gorm.Model
	StudentID   uint `json:"student_id" gorm:"uniqueIndex;not null"`
	TeacherID   uint `json:"teacher_id" gorm:"index;not null"`
	ClassroomID uint `json:"classroom_id" gorm:"index;not null"`

	Teacher   Profile   `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Classroom Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
}
