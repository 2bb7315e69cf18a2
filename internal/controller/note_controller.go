package controller

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/utils/jwt"
)

type NoteInput struct {
	Content   string `json:"content" validate:"required"`
	StudentID uint   `json:"student_id" validate:"required"`
}

// CreateNote records a teacher observation. Notes feed the next PEI renewal.
func CreateNote(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(NoteInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.Content == "" || input.StudentID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content and student are required",
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

	note := model.Note{
		Content:     input.Content,
		StudentID:   input.StudentID,
		CreatedByID: claims.ProfileID,
	}

	if err := database.DB.Create(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create note",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(note)
}

func ListNotes(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	query := database.DB.Model(&model.Note{}).Where("created_by_id = ?", claims.ProfileID)
	if studentID := c.QueryInt("student_id", 0); studentID > 0 {
		query = query.Where("student_id = ?", studentID)
	}
	if page.Search != "" {
		query = query.Where("content ILIKE ?", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var notes []model.Note
	if err := query.Offset(page.Skip).Limit(page.Take).Order("created_at DESC").Find(&notes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch notes",
		})
	}

	return c.JSON(fiber.Map{
		"notes": notes,
		"total": total,
	})
}

func UpdateNote(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var note model.Note
	if err := database.DB.
		Where("id = ? AND created_by_id = ?", c.Params("id"), claims.ProfileID).
		First(&note).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Note not found",
		})
	}

	input := new(NoteInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content is required",
		})
	}

	if err := database.DB.Model(&note).Update("content", input.Content).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update note",
		})
	}

	return c.JSON(note)
}

func DeleteNote(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var note model.Note
	if err := database.DB.
		Where("id = ? AND created_by_id = ?", c.Params("id"), claims.ProfileID).
		First(&note).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Note not found",
		})
	}

	if err := database.DB.Delete(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete note",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Note deleted successfully",
	})
}
