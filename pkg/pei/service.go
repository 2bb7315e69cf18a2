package pei

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/ai"
	"peiplan_backend/pkg/apperr"
)

// validity is the fixed window a PEI stays in force.
const validityMonths = 3

// ContentGenerator synthesizes plan content; pkg/ai provides the real one.
type ContentGenerator interface {
	CreatePEIContent(ctx context.Context, cfg ai.PEIContext) (string, error)
	RenewPEIContent(ctx context.Context, cfg ai.PEIContext) (string, error)
}

type Service struct {
	db      *gorm.DB
	content ContentGenerator
}

func NewService(db *gorm.DB, content ContentGenerator) *Service {
	return &Service{db: db, content: content}
}

type CreateInput struct {
	StudentID           uint           `json:"student_id"`
	FormQuestions       datatypes.JSON `json:"form_questions"`
	SecondFormQuestions datatypes.JSON `json:"second_form_questions"`
}

// Create generates the first PEI for a student. A non-renewal PEI may exist
// only once per student and teacher.
func (s *Service) Create(ctx context.Context, input CreateInput, teacherProfileID uint) (*model.PEI, error) {
	var existing model.PEI
	err := s.db.
		Where("student_id = ? AND created_by_id = ? AND is_renewal = ?", input.StudentID, teacherProfileID, false).
		First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("A PEI already exists for this student")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	student, teacher, err := s.loadParticipants(input.StudentID, teacherProfileID)
	if err != nil {
		return nil, err
	}

	startDate := time.Now()
	endDate := startDate.AddDate(0, validityMonths, 0)

	content, err := s.content.CreatePEIContent(ctx, ai.PEIContext{
		Student:             student,
		Teacher:             teacher,
		Classroom:           &student.ClassroomAssignment.Classroom,
		School:              &student.School,
		StartDate:           startDate,
		EndDate:             endDate,
		FormQuestions:       input.FormQuestions,
		SecondFormQuestions: input.SecondFormQuestions,
	})
	if err != nil {
		return nil, apperr.Upstream("Could not generate PEI content", err)
	}

	record := model.PEI{
		Content:             content,
		StudentID:           input.StudentID,
		CreatedByID:         teacherProfileID,
		StartDate:           startDate,
		EndDate:             endDate,
		Status:              model.PEIStatusActive,
		Version:             1,
		IsRenewal:           false,
		FormQuestions:       input.FormQuestions,
		SecondFormQuestions: input.SecondFormQuestions,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

// Renew replaces an expired PEI: new row with the next version, previous one
// flipped to INACTIVE, and the notes consumed by the renewal purged.
func (s *Service) Renew(ctx context.Context, input CreateInput, teacherProfileID uint) (*model.PEI, error) {
	student, teacher, err := s.loadParticipants(input.StudentID, teacherProfileID)
	if err != nil {
		return nil, err
	}

	var previous model.PEI
	err = s.db.
		Where("student_id = ? AND created_by_id = ?", input.StudentID, teacherProfileID).
		Order("created_at DESC").
		First(&previous).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("No previous PEI found")
		}
		return nil, err
	}

	if previous.Status != model.PEIStatusExpired {
		return nil, apperr.Conflict("The previous PEI cannot be renewed because it has not expired")
	}

	cutoff := time.Now().AddDate(0, -validityMonths, 0)

	var latestNotes []model.Note
	err = s.db.
		Where("student_id = ? AND created_by_id = ? AND created_at >= ?", input.StudentID, teacherProfileID, cutoff).
		Find(&latestNotes).Error
	if err != nil {
		return nil, err
	}

	startDate := time.Now()
	endDate := startDate.AddDate(0, validityMonths, 0)

	content, err := s.content.RenewPEIContent(ctx, ai.PEIContext{
		Student:             student,
		Teacher:             teacher,
		Classroom:           &student.ClassroomAssignment.Classroom,
		School:              &student.School,
		StartDate:           startDate,
		EndDate:             endDate,
		FormQuestions:       input.FormQuestions,
		SecondFormQuestions: input.SecondFormQuestions,
		PreviousPEI:         &previous,
		LatestNotes:         latestNotes,
	})
	if err != nil {
		return nil, apperr.Upstream("Could not generate PEI content", err)
	}

	record := model.PEI{
		Content:             content,
		StudentID:           input.StudentID,
		CreatedByID:         teacherProfileID,
		StartDate:           startDate,
		EndDate:             endDate,
		Status:              model.PEIStatusActive,
		Version:             previous.Version + 1,
		IsRenewal:           true,
		FormQuestions:       input.FormQuestions,
		SecondFormQuestions: input.SecondFormQuestions,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if err := tx.Model(&previous).Update("status", model.PEIStatusInactive).Error; err != nil {
			return err
		}
		// Notes folded into this renewal are no longer retained.
		return tx.
			Where("student_id = ? AND created_by_id = ? AND created_at <= ?", input.StudentID, teacherProfileID, cutoff).
			Delete(&model.Note{}).Error
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// loadParticipants fetches the student (with assignment, classroom, school)
// and the acting teacher profile.
func (s *Service) loadParticipants(studentID, teacherProfileID uint) (*model.Student, *model.Profile, error) {
	var student model.Student
	err := s.db.
		Preload("ClassroomAssignment.Classroom").
		Preload("School").
		First(&student, studentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("Student not found")
		}
		return nil, nil, err
	}
	if student.ClassroomAssignment == nil {
		return nil, nil, apperr.NotFound("Student has no classroom assignment")
	}

	var teacher model.Profile
	err = s.db.Preload("User").
		Where("id = ? AND role = ?", teacherProfileID, model.RoleTeacher).
		First(&teacher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("Teacher not found")
		}
		return nil, nil, err
	}

	return &student, &teacher, nil
}

// FindLatestByStudent returns the most recent PEI for a student and teacher.
func (s *Service) FindLatestByStudent(studentID, teacherProfileID uint) (*model.PEI, error) {
	var record model.PEI
	err := s.db.
		Preload("Student.ClassroomAssignment.Classroom").
		Where("student_id = ? AND created_by_id = ?", studentID, teacherProfileID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("PEI not found")
		}
		return nil, err
	}
	return &record, nil
}

// ExpireOverdue flips ACTIVE PEIs past their end date to EXPIRED. Re-running
// over the same rows is a no-op.
func (s *Service) ExpireOverdue(now time.Time) error {
	var overdue []model.PEI
	err := s.db.
		Select("id").
		Where("status = ? AND end_date < ?", model.PEIStatusActive, now).
		Find(&overdue).Error
	if err != nil {
		return err
	}

	for _, record := range overdue {
		if err := s.db.Model(&model.PEI{}).
			Where("id = ?", record.ID).
			Update("status", model.PEIStatusExpired).Error; err != nil {
			log.Printf("Error expiring PEI %d: %v", record.ID, err)
		}
	}
	return nil
}
