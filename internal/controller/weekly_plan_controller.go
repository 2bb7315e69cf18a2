package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/ai"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/utils/jwt"
)

var contentService *ai.ContentService

func InitWeeklyPlanController(service *ai.ContentService) {
	contentService = service
}

type WeeklyPlanInput struct {
	StudentID     uint           `json:"student_id" validate:"required"`
	WeekStart     time.Time      `json:"week_start" validate:"required"`
	FormQuestions datatypes.JSON `json:"form_questions"`
}

// CreateWeeklyPlan generates a plan for one school week. A student gets at
// most one plan per week per teacher.
func CreateWeeklyPlan(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(WeeklyPlanInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.StudentID == 0 || input.WeekStart.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Student and week start are required",
		})
	}

	var assignment model.ClassroomAssignment
	if err := database.DB.
		Where("student_id = ? AND teacher_id = ?", input.StudentID, claims.ProfileID).
		First(&assignment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student is not assigned to you",
		})
	}

	weekStart := input.WeekStart.Truncate(24 * time.Hour)
	weekEnd := weekStart.AddDate(0, 0, 6)

	var existing model.WeeklyPlan
	err := database.DB.
		Where("student_id = ? AND created_by_id = ? AND week_start = ?", input.StudentID, claims.ProfileID, weekStart).
		First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A weekly plan already exists for this week",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not check existing plans",
		})
	}

	var student model.Student
	if err := database.DB.First(&student, input.StudentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	var teacher model.Profile
	if err := database.DB.Preload("User").First(&teacher, claims.ProfileID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	// The current PEI gives the generator its goals; absent one the plan is
	// still generated from the questionnaire alone.
	var currentPEI *model.PEI
	var latest model.PEI
	err = database.DB.
		Where("student_id = ? AND created_by_id = ? AND status = ?", input.StudentID, claims.ProfileID, model.PEIStatusActive).
		Order("created_at DESC").
		First(&latest).Error
	if err == nil {
		currentPEI = &latest
	}

	content, err := contentService.CreateWeeklyPlanContent(c.Context(), ai.WeeklyPlanContext{
		Student:       &student,
		Teacher:       &teacher,
		CurrentPEI:    currentPEI,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		FormQuestions: input.FormQuestions,
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not generate weekly plan content",
		})
	}

	plan := model.WeeklyPlan{
		Content:       content,
		StudentID:     input.StudentID,
		CreatedByID:   claims.ProfileID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		FormQuestions: input.FormQuestions,
	}

	if err := database.DB.Create(&plan).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save weekly plan",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}

func ListWeeklyPlans(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	query := database.DB.Model(&model.WeeklyPlan{}).Where("created_by_id = ?", claims.ProfileID)
	if studentID := c.QueryInt("student_id", 0); studentID > 0 {
		query = query.Where("student_id = ?", studentID)
	}

	var total int64
	query.Count(&total)

	var plans []model.WeeklyPlan
	if err := query.
		Preload("Student").
		Offset(page.Skip).Limit(page.Take).
		Order("week_start DESC").
		Find(&plans).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch weekly plans",
		})
	}

	return c.JSON(fiber.Map{
		"weekly_plans": plans,
		"total":        total,
	})
}

func GetWeeklyPlan(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var plan model.WeeklyPlan
	if err := database.DB.
		Preload("Student").
		Where("id = ? AND created_by_id = ?", c.Params("id"), claims.ProfileID).
		First(&plan).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Weekly plan not found",
		})
	}

	return c.JSON(plan)
}

func DeleteWeeklyPlan(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var plan model.WeeklyPlan
	if err := database.DB.
		Where("id = ? AND created_by_id = ?", c.Params("id"), claims.ProfileID).
		First(&plan).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Weekly plan not found",
		})
	}

	if err := database.DB.Delete(&plan).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete weekly plan",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Weekly plan deleted successfully",
	})
}
