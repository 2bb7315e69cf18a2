package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/jwt"
)

type SchoolInput struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func CreateSchool(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(SchoolInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "School name is required",
		})
	}

	school := model.School{
		Name:        input.Name,
		Slug:        slug.Make(input.Name),
		Address:     input.Address,
		CreatedByID: claims.ProfileID,
	}

	var existing model.School
	if err := database.DB.Where("slug = ?", school.Slug).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A school with this name already exists",
		})
	}

	if err := database.DB.Create(&school).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create school",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(school)
}

func ListSchools(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	query := database.DB.Model(&model.School{}).Where("created_by_id = ?", tenantID)
	if page.Search != "" {
		query = query.Where("name ILIKE ?", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var schools []model.School
	if err := query.Offset(page.Skip).Limit(page.Take).Order("name").Find(&schools).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch schools",
		})
	}

	return c.JSON(fiber.Map{
		"schools": schools,
		"total":   total,
	})
}

func GetSchool(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	school, err := findTenantSchool(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	database.DB.Preload("Classrooms").First(school, school.ID)
	return c.JSON(school)
}

func UpdateSchool(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	school, err := findTenantSchool(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	input := new(SchoolInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
		updates["slug"] = slug.Make(input.Name)
	}
	if input.Address != "" {
		updates["address"] = input.Address
	}

	if err := database.DB.Model(school).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update school",
		})
	}

	return c.JSON(school)
}

func DeleteSchool(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	school, err := findTenantSchool(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	var classroomCount int64
	database.DB.Model(&model.Classroom{}).Where("school_id = ?", school.ID).Count(&classroomCount)
	if classroomCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "School still has classrooms",
		})
	}

	if err := database.DB.Delete(school).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete school",
		})
	}

	return c.JSON(fiber.Map{
		"message": "School deleted successfully",
	})
}

// findTenantSchool loads a school and checks it belongs to the caller's
// tenant.
func findTenantSchool(id string, claims *jwt.Claims) (*model.School, error) {
	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return nil, err
	}

	var school model.School
	if err := database.DB.Where("id = ? AND created_by_id = ?", id, tenantID).First(&school).Error; err != nil {
		return nil, err
	}
	return &school, nil
}
