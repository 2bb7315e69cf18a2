package controller

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/subscription"
)

func ListUsers(c *fiber.Ctx) error {
	page := parsePageParams(c)

	query := database.DB.Model(&model.User{})
	if page.Search != "" {
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", "%"+page.Search+"%", "%"+page.Search+"%")
	}

	var total int64
	query.Count(&total)

	var users []model.User
	if err := query.
		Preload("Profile").
		Offset(page.Skip).Limit(page.Take).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch users",
		})
	}

	return c.JSON(fiber.Map{
		"users": users,
		"total": total,
	})
}

type SetAdminInput struct {
	IsAdmin bool `json:"is_admin"`
}

func SetAdmin(c *fiber.Ctx) error {
	var user model.User
	if err := database.DB.First(&user, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	input := new(SetAdminInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if err := database.DB.Model(&user).Update("is_admin", input.IsAdmin).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
	})
}

func ListSubscriptions(c *fiber.Ctx) error {
	page := parsePageParams(c)

	query := database.DB.Model(&model.Subscription{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if planType := c.Query("plan_type"); planType != "" {
		query = query.Where("plan_type = ?", planType)
	}

	var total int64
	query.Count(&total)

	var subs []model.Subscription
	if err := query.
		Preload("Limit").
		Preload("Feature").
		Preload("Profiles.User").
		Offset(page.Skip).Limit(page.Take).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscriptions",
		})
	}

	return c.JSON(fiber.Map{
		"subscriptions": subs,
		"total":         total,
	})
}

// CreateCustomSubscription provisions a negotiated PLUS plan for a director.
func CreateCustomSubscription(c *fiber.Ctx) error {
	input := new(subscription.CustomSubscriptionInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.DirectorID == 0 || input.Price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Director and a positive price are required",
		})
	}

	session, err := subscriptionService.CreateCustomSubscription(*input)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"checkout_url": session.URL,
		"session_id":   session.ID,
	})
}

func UpdateSubscriptionAdmin(c *fiber.Ctx) error {
	subID, err := c.ParamsInt("id")
	if err != nil || subID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription id",
		})
	}

	input := new(subscription.UpdateSubscriptionInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := subscriptionService.UpdateSubscription(uint(subID), *input)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(sub)
}

func DeleteSubscription(c *fiber.Ctx) error {
	subID, err := c.ParamsInt("id")
	if err != nil || subID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription id",
		})
	}

	if err := subscriptionService.RemoveSubscription(uint(subID)); err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Subscription deleted successfully",
	})
}

func ListAIRequests(c *fiber.Ctx) error {
	page := parsePageParams(c)

	query := database.DB.Model(&model.AIRequest{})
	if requestType := c.Query("type"); requestType != "" {
		query = query.Where("type = ?", requestType)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var requests []model.AIRequest
	if err := query.
		Offset(page.Skip).Limit(page.Take).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch AI requests",
		})
	}

	return c.JSON(fiber.Map{
		"ai_requests": requests,
		"total":       total,
	})
}

// GetMetrics returns platform-wide counters for the admin dashboard.
func GetMetrics(c *fiber.Ctx) error {
	var metrics struct {
		Users               int64 `json:"users"`
		Directors           int64 `json:"directors"`
		Teachers            int64 `json:"teachers"`
		Schools             int64 `json:"schools"`
		Students            int64 `json:"students"`
		PEIs                int64 `json:"peis"`
		WeeklyPlans         int64 `json:"weekly_plans"`
		ActiveSubscriptions int64 `json:"active_subscriptions"`
		AIRequests          int64 `json:"ai_requests"`
		TotalTokens         int64 `json:"total_tokens"`
	}

	database.DB.Model(&model.User{}).Count(&metrics.Users)
	database.DB.Model(&model.Profile{}).Where("role = ?", model.RoleDirector).Count(&metrics.Directors)
	database.DB.Model(&model.Profile{}).Where("role = ?", model.RoleTeacher).Count(&metrics.Teachers)
	database.DB.Model(&model.School{}).Count(&metrics.Schools)
	database.DB.Model(&model.Student{}).Count(&metrics.Students)
	database.DB.Model(&model.PEI{}).Count(&metrics.PEIs)
	database.DB.Model(&model.WeeklyPlan{}).Count(&metrics.WeeklyPlans)
	database.DB.Model(&model.Subscription{}).
		Where("status = ?", model.SubscriptionStatusActive).
		Count(&metrics.ActiveSubscriptions)
	database.DB.Model(&model.AIRequest{}).Count(&metrics.AIRequests)
	database.DB.Model(&model.AIRequest{}).
		Select("COALESCE(SUM(total_tokens), 0)").
		Scan(&metrics.TotalTokens)

	return c.JSON(metrics)
}
