package middleware

import (
	"github.com/gofiber/fiber/v2"

	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/jwt"
)

// CheckStudentLimit blocks student creation once the tenant's plan limit is
// reached.
func CheckStudentLimit() fiber.Handler {
	return checkLimit(func(checker *subscription.Checker, tenantID uint) error {
		return checker.CheckStudentsLimit(tenantID)
	})
}

func CheckWeeklyPlanLimit() fiber.Handler {
	return checkLimit(func(checker *subscription.Checker, tenantID uint) error {
		return checker.CheckWeeklyPlansLimit(tenantID)
	})
}

func CheckPeiLimit() fiber.Handler {
	return checkLimit(func(checker *subscription.Checker, tenantID uint) error {
		return checker.CheckPeisPerTrimesterLimit(tenantID)
	})
}

func checkLimit(check func(checker *subscription.Checker, tenantID uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		checker := subscription.NewChecker(database.DB)
		tenantID, err := checker.ResolveTenant(claims.ProfileID)
		if err != nil {
			return apperr.Respond(c, err)
		}

		if err := check(checker, tenantID); err != nil {
			return apperr.Respond(c, err)
		}
		return c.Next()
	}
}
