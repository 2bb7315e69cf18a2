package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/jwt"
	"peiplan_backend/pkg/utils/storage"
	"peiplan_backend/pkg/utils/validation"
)

type MedicalConditionInput struct {
	Condition string `json:"condition" validate:"required"`
	Age       int    `json:"age"`
}

type StudentInput struct {
	FullName          string                  `json:"full_name" validate:"required"`
	DateOfBirth       time.Time               `json:"date_of_birth"`
	Gender            string                  `json:"gender"`
	CID               string                  `json:"cid"`
	SpecialNeeds      string                  `json:"special_needs"`
	ParentGuardian    string                  `json:"parent_guardian"`
	HasCamping        bool                    `json:"has_camping"`
	SchoolID          uint                    `json:"school_id" validate:"required"`
	ClassroomID       uint                    `json:"classroom_id" validate:"required"`
	TeacherID         uint                    `json:"teacher_id"`
	MedicalConditions []MedicalConditionInput `json:"medical_conditions"`
}

// CreateStudent registers a student with their classroom assignment. Teachers
// become the assigned teacher themselves; directors must name one.
func CreateStudent(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(StudentInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.FullName == "" || input.SchoolID == 0 || input.ClassroomID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Full name, school and classroom are required",
		})
	}

	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	teacherID := input.TeacherID
	if claims.Role == model.RoleTeacher {
		teacherID = claims.ProfileID
	}
	if teacherID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A teacher must be assigned to the student",
		})
	}

	var classroom model.Classroom
	if err := database.DB.Where("id = ? AND created_by_id = ?", input.ClassroomID, tenantID).First(&classroom).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Classroom not found",
		})
	}

	student := model.Student{
		FullName:       input.FullName,
		DateOfBirth:    input.DateOfBirth,
		Gender:         input.Gender,
		CID:            input.CID,
		SpecialNeeds:   input.SpecialNeeds,
		ParentGuardian: input.ParentGuardian,
		HasCamping:     input.HasCamping,
		SchoolID:       input.SchoolID,
		CreatedByID:    claims.ProfileID,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student).Error; err != nil {
			return err
		}

		for _, mc := range input.MedicalConditions {
			condition := model.MedicalCondition{
				StudentID: student.ID,
				Condition: mc.Condition,
				Age:       mc.Age,
			}
			if err := tx.Create(&condition).Error; err != nil {
				return err
			}
		}

		assignment := model.ClassroomAssignment{
			StudentID:   student.ID,
			TeacherID:   teacherID,
			ClassroomID: input.ClassroomID,
		}
		return tx.Create(&assignment).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create student",
		})
	}

	database.DB.Preload("MedicalConditions").Preload("ClassroomAssignment.Classroom").First(&student, student.ID)
	return c.Status(fiber.StatusCreated).JSON(student)
}

func ListStudents(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	page := parsePageParams(c)

	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	query := database.DB.Model(&model.Student{}).
		Joins("JOIN classroom_assignments ON classroom_assignments.student_id = students.id AND classroom_assignments.deleted_at IS NULL").
		Joins("JOIN classrooms ON classrooms.id = classroom_assignments.classroom_id AND classrooms.deleted_at IS NULL").
		Where("classrooms.created_by_id = ?", tenantID)

	// Teachers only see students assigned to them.
	if claims.Role == model.RoleTeacher {
		query = query.Where("classroom_assignments.teacher_id = ?", claims.ProfileID)
	}
	if page.Search != "" {
		query = query.Where("students.full_name ILIKE ?", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var students []model.Student
	if err := query.
		Preload("ClassroomAssignment.Classroom").
		Offset(page.Skip).Limit(page.Take).
		Order("students.full_name").
		Find(&students).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch students",
		})
	}

	return c.JSON(fiber.Map{
		"students": students,
		"total":    total,
	})
}

func GetStudent(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	student, err := findTenantStudent(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	database.DB.
		Preload("MedicalConditions").
		Preload("ClassroomAssignment.Classroom").
		Preload("ClassroomAssignment.Teacher.User").
		Preload("School").
		First(student, student.ID)

	return c.JSON(student)
}

func UpdateStudent(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	student, err := findTenantStudent(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	input := new(StudentInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"gender":          input.Gender,
			"cid":             input.CID,
			"special_needs":   input.SpecialNeeds,
			"parent_guardian": input.ParentGuardian,
			"has_camping":     input.HasCamping,
		}
		if input.FullName != "" {
			updates["full_name"] = input.FullName
		}
		if !input.DateOfBirth.IsZero() {
			updates["date_of_birth"] = input.DateOfBirth
		}
		if err := tx.Model(student).Updates(updates).Error; err != nil {
			return err
		}

		// Medical conditions are replaced wholesale.
		if input.MedicalConditions != nil {
			if err := tx.Where("student_id = ?", student.ID).Delete(&model.MedicalCondition{}).Error; err != nil {
				return err
			}
			for _, mc := range input.MedicalConditions {
				condition := model.MedicalCondition{
					StudentID: student.ID,
					Condition: mc.Condition,
					Age:       mc.Age,
				}
				if err := tx.Create(&condition).Error; err != nil {
					return err
				}
			}
		}

		if input.ClassroomID != 0 {
			updates := map[string]interface{}{"classroom_id": input.ClassroomID}
			if input.TeacherID != 0 {
				updates["teacher_id"] = input.TeacherID
			}
			if err := tx.Model(&model.ClassroomAssignment{}).
				Where("student_id = ?", student.ID).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update student",
		})
	}

	database.DB.Preload("MedicalConditions").Preload("ClassroomAssignment.Classroom").First(student, student.ID)
	return c.JSON(student)
}

func DeleteStudent(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	student, err := findTenantStudent(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", student.ID).Delete(&model.ClassroomAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", student.ID).Delete(&model.MedicalCondition{}).Error; err != nil {
			return err
		}
		return tx.Delete(student).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete student",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Student deleted successfully",
	})
}

func UploadStudentPhoto(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	student, err := findTenantStudent(c.Params("id"), claims)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	file, err := c.FormFile("photo")
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

	url, err := storage.UploadStudentPhoto(file, student.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload photo",
		})
	}

	if student.PhotoURL != "" {
		_ = storage.DeleteFile(student.PhotoURL)
	}

	if err := database.DB.Model(student).Update("photo_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save photo",
		})
	}

	return c.JSON(fiber.Map{
		"photo_url": url,
	})
}

// findTenantStudent loads a student and checks they belong to the caller's
// tenant via their classroom. Teachers must additionally be the assigned
// teacher.
func findTenantStudent(id string, claims *jwt.Claims) (*model.Student, error) {
	tenantID, err := subscription.NewChecker(database.DB).ResolveTenant(claims.ProfileID)
	if err != nil {
		return nil, err
	}

	query := database.DB.Model(&model.Student{}).
		Joins("JOIN classroom_assignments ON classroom_assignments.student_id = students.id AND classroom_assignments.deleted_at IS NULL").
		Joins("JOIN classrooms ON classrooms.id = classroom_assignments.classroom_id AND classrooms.deleted_at IS NULL").
		Where("students.id = ? AND classrooms.created_by_id = ?", id, tenantID)

	if claims.Role == model.RoleTeacher {
		query = query.Where("classroom_assignments.teacher_id = ?", claims.ProfileID)
	}

	var student model.Student
	if err := query.First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}
