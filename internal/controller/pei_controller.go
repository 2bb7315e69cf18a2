package controller

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/pei"
	"peiplan_backend/pkg/utils/jwt"
)

var peiService *pei.Service

func InitPEIController(service *pei.Service) {
	peiService = service
}

func CreatePEI(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(pei.CreateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.StudentID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Student is required",
		})
	}

	record, err := peiService.Create(c.Context(), *input, claims.ProfileID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func RenewPEI(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(pei.CreateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.StudentID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Student is required",
		})
	}

	record, err := peiService.Renew(c.Context(), *input, claims.ProfileID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// GetStudentPEI returns the most recent PEI the calling teacher wrote for a
// student.
func GetStudentPEI(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	studentID := c.QueryInt("student_id", 0)
	if studentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Student is required",
		})
	}

	record, err := peiService.FindLatestByStudent(uint(studentID), claims.ProfileID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(record)
}

func ListPEIs(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	query := database.DB.Model(&model.PEI{}).Where("created_by_id = ?", claims.ProfileID)
	if studentID := c.QueryInt("student_id", 0); studentID > 0 {
		query = query.Where("student_id = ?", studentID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var records []model.PEI
	if err := query.
		Preload("Student").
		Offset(page.Skip).Limit(page.Take).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch PEIs",
		})
	}

	return c.JSON(fiber.Map{
		"peis":  records,
		"total": total,
	})
}
