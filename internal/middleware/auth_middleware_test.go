package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/utils/jwt"
)

func testApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", AuthMiddleware(), func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)
		return c.JSON(fiber.Map{"profile_id": claims.ProfileID})
	})
	app.Get("/director-only", AuthMiddleware(), RequireRole(model.RoleDirector), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/admin-only", AuthMiddleware(), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := testApp()

	t.Run("missing header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token passes", func(t *testing.T) {
		token, err := jwt.GenerateToken(1, 2, model.RoleTeacher, "t@example.com", false)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRequireRole(t *testing.T) {
	app := testApp()

	t.Run("wrong role is forbidden", func(t *testing.T) {
		token, err := jwt.GenerateToken(1, 2, model.RoleTeacher, "t@example.com", false)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/director-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("matching role passes", func(t *testing.T) {
		token, err := jwt.GenerateToken(1, 2, model.RoleDirector, "d@example.com", false)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/director-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("admin bypasses role checks", func(t *testing.T) {
		token, err := jwt.GenerateToken(1, 2, model.RoleTeacher, "a@example.com", true)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/director-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRequireAdmin(t *testing.T) {
	app := testApp()

	token, err := jwt.GenerateToken(1, 2, model.RoleDirector, "d@example.com", false)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
