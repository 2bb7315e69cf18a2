package controller

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/utils/jwt"
	"peiplan_backend/pkg/utils/storage"
	"peiplan_backend/pkg/utils/validation"
)

func GetProfile(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var profile model.Profile
	if err := database.DB.Preload("User").Preload("School").First(&profile, claims.ProfileID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":         profile.ID,
		"full_name":  profile.User.FullName,
		"email":      profile.User.Email,
		"role":       profile.Role,
		"avatar_url": profile.AvatarURL,
		"school":     profile.School,
	})
}

type UpdateProfileInput struct {
	FullName string `json:"full_name"`
}

func UpdateProfile(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(UpdateProfileInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.FullName != "" {
		if err := database.DB.Model(&model.User{}).
			Where("id = ?", claims.UserID).
			Update("full_name", input.FullName).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update profile",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
	})
}

func UploadAvatar(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	if err := validation.ValidateImage(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var profile model.Profile
	if err := database.DB.First(&profile, claims.ProfileID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	url, err := storage.UploadAvatar(file, profile.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload avatar",
		})
	}

	if profile.AvatarURL != "" {
		_ = storage.DeleteFile(profile.AvatarURL)
	}

	if err := database.DB.Model(&profile).Update("avatar_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save avatar",
		})
	}

	return c.JSON(fiber.Map{
		"avatar_url": url,
	})
}
