package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"peiplan_backend/internal/model"
)

// TestDirector creates a user with a DIRECTOR profile.
func TestDirector(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()
	return testProfile(t, db, model.RoleDirector, opts...)
}

// TestTeacher creates a user with a TEACHER profile under the given director.
func TestTeacher(t *testing.T, db *gorm.DB, director *model.Profile, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()
	opts = append([]func(*model.Profile){func(p *model.Profile) {
		p.CreatedByID = &director.ID
	}}, opts...)
	return testProfile(t, db, model.RoleTeacher, opts...)
}

func testProfile(t *testing.T, db *gorm.DB, role string, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	user := &model.User{
		FullName: fmt.Sprintf("Test User %d", time.Now().UnixNano()%100000),
		Email:    fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Password: "$2a$10$abcdefghijklmnopqrstuvwxyz123456",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	profile := &model.Profile{
		UserID: user.ID,
		Role:   role,
	}
	for _, opt := range opts {
		opt(profile)
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	profile.User = *user
	return profile
}

// WithSubscriptionID links the profile to a subscription.
func WithSubscriptionID(id uint) func(*model.Profile) {
	return func(p *model.Profile) {
		p.SubscriptionID = &id
	}
}

// WithAdmin marks the profile's user as a platform admin.
func WithAdmin(t *testing.T, db *gorm.DB) func(*model.Profile) {
	return func(p *model.Profile) {
		if err := db.Model(&model.User{}).Where("id = ?", p.UserID).Update("is_admin", true).Error; err != nil {
			t.Fatalf("Failed to set admin flag: %v", err)
		}
	}
}

// TestSubscription creates a subscription with limit and feature rows.
func TestSubscription(t *testing.T, db *gorm.DB, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	endDate := time.Now().AddDate(0, 1, 0)
	sub := &model.Subscription{
		PlanType:  "BASIC",
		Status:    model.SubscriptionStatusActive,
		Price:     399.00,
		StartDate: time.Now(),
		EndDate:   &endDate,
		Limit: &model.SubscriptionLimit{
			MaxStudents:        10,
			MaxPeiPerTrimester: 10,
			MaxWeeklyPlans:     40,
		},
		Feature: &model.SubscriptionFeature{
			PremiumSupport: false,
		},
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

func WithStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

func WithPlanType(planType string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.PlanType = planType
	}
}

func WithEndDate(endDate time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.EndDate = &endDate
	}
}

func WithExternalID(id string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.ExternalID = &id
	}
}

func WithCustomerID(id string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.CustomerID = &id
	}
}

func WithLimits(students, peis, weeklyPlans int) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Limit.MaxStudents = students
		s.Limit.MaxPeiPerTrimester = peis
		s.Limit.MaxWeeklyPlans = weeklyPlans
	}
}

// TestSchool creates a school owned by the given director.
func TestSchool(t *testing.T, db *gorm.DB, director *model.Profile) *model.School {
	t.Helper()

	school := &model.School{
		Name:        fmt.Sprintf("Test School %d", time.Now().UnixNano()%100000),
		Slug:        fmt.Sprintf("test-school-%d", time.Now().UnixNano()),
		CreatedByID: director.ID,
	}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("Failed to create test school: %v", err)
	}
	return school
}

// TestClassroom creates a classroom in a school, owned by the director.
func TestClassroom(t *testing.T, db *gorm.DB, school *model.School, director *model.Profile) *model.Classroom {
	t.Helper()

	classroom := &model.Classroom{
		Name:        fmt.Sprintf("Classroom %d", time.Now().UnixNano()%100000),
		Period:      "MORNING",
		SchoolID:    school.ID,
		CreatedByID: director.ID,
	}
	if err := db.Create(classroom).Error; err != nil {
		t.Fatalf("Failed to create test classroom: %v", err)
	}
	return classroom
}

// TestStudent creates a student assigned to the teacher in the classroom.
func TestStudent(t *testing.T, db *gorm.DB, classroom *model.Classroom, teacher *model.Profile) *model.Student {
	t.Helper()

	student := &model.Student{
		FullName:    fmt.Sprintf("Test Student %d", time.Now().UnixNano()%100000),
		DateOfBirth: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      model.StudentStatusActive,
		SchoolID:    classroom.SchoolID,
		CreatedByID: teacher.ID,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("Failed to create test student: %v", err)
	}

	assignment := &model.ClassroomAssignment{
		StudentID:   student.ID,
		TeacherID:   teacher.ID,
		ClassroomID: classroom.ID,
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("Failed to create test assignment: %v", err)
	}

	student.ClassroomAssignment = assignment
	return student
}

// TestPEI creates a PEI for a student written by the teacher.
func TestPEI(t *testing.T, db *gorm.DB, student *model.Student, teacher *model.Profile, opts ...func(*model.PEI)) *model.PEI {
	t.Helper()

	record := &model.PEI{
		Content:     "Generated plan content",
		StudentID:   student.ID,
		CreatedByID: teacher.ID,
		StartDate:   time.Now().AddDate(0, -3, 0),
		EndDate:     time.Now(),
		Status:      model.PEIStatusActive,
		Version:     1,
	}
	for _, opt := range opts {
		opt(record)
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("Failed to create test PEI: %v", err)
	}
	return record
}

func WithPEIStatus(status string) func(*model.PEI) {
	return func(p *model.PEI) {
		p.Status = status
	}
}

func WithPEIVersion(version int) func(*model.PEI) {
	return func(p *model.PEI) {
		p.Version = version
	}
}

// TestNote creates a note for a student.
func TestNote(t *testing.T, db *gorm.DB, student *model.Student, teacher *model.Profile) *model.Note {
	t.Helper()

	note := &model.Note{
		Content:     "Observed progress in reading",
		StudentID:   student.ID,
		CreatedByID: teacher.ID,
	}
	if err := db.Create(note).Error; err != nil {
		t.Fatalf("Failed to create test note: %v", err)
	}
	return note
}
