package controller

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/jwt"
)

type ClassroomInput struct {
	Name     string `json:"name" validate:"required"`
	Period   string `json:"period"`
	SchoolID uint   `json:"school_id" validate:"required"`
}

func CreateClassroom(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ClassroomInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.Name == "" || input.SchoolID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Classroom name and school are required",
		})
	}

	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	var school model.School
	if err := database.DB.Where("id = ? AND created_by_id = ?", input.SchoolID, tenantID).First(&school).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	classroom := model.Classroom{
		Name:        input.Name,
		Period:      input.Period,
		SchoolID:    input.SchoolID,
		CreatedByID: tenantID,
	}

	if err := database.DB.Create(&classroom).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create classroom",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(classroom)
}

func ListClassrooms(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	query := database.DB.Model(&model.Classroom{}).Where("created_by_id = ?", tenantID)
	if schoolID := c.QueryInt("school_id", 0); schoolID > 0 {
		query = query.Where("school_id = ?", schoolID)
	}
	if page.Search != "" {
		query = query.Where("name ILIKE ?", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var classrooms []model.Classroom
	if err := query.Offset(page.Skip).Limit(page.Take).Order("name").Find(&classrooms).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch classrooms",
		})
	}

	return c.JSON(fiber.Map{
		"classrooms": classrooms,
		"total":      total,
	})
}

func GetClassroom(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	classroom, err := findTenantClassroom(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Classroom not found",
		})
	}

	return c.JSON(classroom)
}

func UpdateClassroom(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	classroom, err := findTenantClassroom(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Classroom not found",
		})
	}

	input := new(ClassroomInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.Period != "" {
		updates["period"] = input.Period
	}

	if err := database.DB.Model(classroom).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update classroom",
		})
	}

	return c.JSON(classroom)
}

func DeleteClassroom(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	classroom, err := findTenantClassroom(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Classroom not found",
		})
	}

	var assignmentCount int64
	database.DB.Model(&model.ClassroomAssignment{}).Where("classroom_id = ?", classroom.ID).Count(&assignmentCount)
	if assignmentCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Classroom still has students assigned",
		})
	}

	if err := database.DB.Delete(classroom).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete classroom",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Classroom deleted successfully",
	})
}

func findTenantClassroom(id string, claims *jwt.Claims) (*model.Classroom, error) {
	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return nil, err
	}

	var classroom model.Classroom
	if err := database.DB.Where("id = ? AND created_by_id = ?", id, tenantID).First(&classroom).Error; err != nil {
		return nil, err
	}
	return &classroom, nil
}
