package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/email"
	"peiplan_backend/pkg/utils/jwt"
)

type TeacherInput struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	SchoolID *uint  `json:"school_id"`
}

// CreateTeacher registers a teacher account under the calling director. The
// teacher inherits the director's subscription.
func CreateTeacher(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(TeacherInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.FullName == "" || input.Email == "" || len(input.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Full name, email and a password of at least 8 characters are required",
		})
	}

	var director model.Profile
	if err := database.DB.Preload("User").First(&director, claims.ProfileID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	var existingUser model.User
	if err := database.DB.Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email already exists",
		})
	}

	if input.SchoolID != nil {
		var school model.School
		if err := database.DB.Where("id = ? AND created_by_id = ?", *input.SchoolID, director.ID).First(&school).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "School not found",
			})
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not hash password",
		})
	}

	user := model.User{
		FullName: input.FullName,
		Email:    input.Email,
		Password: string(hashedPassword),
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		user.Profile = &model.Profile{
			UserID:         user.ID,
			Role:           model.RoleTeacher,
			SchoolID:       input.SchoolID,
			CreatedByID:    &director.ID,
			SubscriptionID: director.SubscriptionID,
		}
		return tx.Create(user.Profile).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create teacher",
		})
	}

	if email.GlobalEmailService != nil {
		schoolName := ""
		if input.SchoolID != nil {
			var school model.School
			if err := database.DB.First(&school, *input.SchoolID).Error; err == nil {
				schoolName = school.Name
			}
		}
		err := email.GlobalEmailService.SendTeacherWelcomeEmail(user.Email, email.TeacherWelcomeData{
			FullName:     user.FullName,
			DirectorName: director.User.FullName,
			SchoolName:   schoolName,
		})
		if err != nil {
			log.Printf("Could not send teacher welcome email to %s: %v", user.Email, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        user.Profile.ID,
		"user_id":   user.ID,
		"full_name": user.FullName,
		"email":     user.Email,
		"role":      user.Profile.Role,
		"school_id": user.Profile.SchoolID,
	})
}

func ListTeachers(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	query := database.DB.Model(&model.Profile{}).
		Joins("JOIN users ON users.id = profiles.user_id AND users.deleted_at IS NULL").
		Where("profiles.created_by_id = ? AND profiles.role = ?", claims.ProfileID, model.RoleTeacher)

	if page.Search != "" {
		query = query.Where("users.full_name ILIKE ? OR users.email ILIKE ?", "%"+page.Search+"%", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var teachers []model.Profile
	if err := query.
		Preload("User").
		Preload("School").
		Offset(page.Skip).Limit(page.Take).
		Order("users.full_name").
		Find(&teachers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch teachers",
		})
	}

	return c.JSON(fiber.Map{
		"teachers": teachers,
		"total":    total,
	})
}

func GetTeacher(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	teacher, err := findOwnedTeacher(c.Params("id"), claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	return c.JSON(teacher)
}

type UpdateTeacherInput struct {
	FullName string `json:"full_name"`
	SchoolID *uint  `json:"school_id"`
}

func UpdateTeacher(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	teacher, err := findOwnedTeacher(c.Params("id"), claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	input := new(UpdateTeacherInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.FullName != "" {
		if err := database.DB.Model(&model.User{}).
			Where("id = ?", teacher.UserID).
			Update("full_name", input.FullName).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update teacher",
			})
		}
	}

	if input.SchoolID != nil {
		var school model.School
		if err := database.DB.Where("id = ? AND created_by_id = ?", *input.SchoolID, claims.ProfileID).First(&school).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "School not found",
			})
		}
		if err := database.DB.Model(teacher).Update("school_id", *input.SchoolID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update teacher",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Teacher updated successfully",
	})
}

func DeleteTeacher(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	teacher, err := findOwnedTeacher(c.Params("id"), claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	var assignmentCount int64
	database.DB.Model(&model.ClassroomAssignment{}).Where("teacher_id = ?", teacher.ID).Count(&assignmentCount)
	if assignmentCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Teacher still has students assigned",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(teacher).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, teacher.UserID).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete teacher",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Teacher deleted successfully",
	})
}

func findOwnedTeacher(id string, directorProfileID uint) (*model.Profile, error) {
	var teacher model.Profile
	err := database.DB.
		Preload("User").
		Preload("School").
		Where("id = ? AND created_by_id = ? AND role = ?", id, directorProfileID, model.RoleTeacher).
		First(&teacher).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}
