package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
)

// Register mounts every route group on app.
func Register(app *fiber.App, h *handlers.Handler) {
	PublicRoutes(app, h)
	AuthRoutes(app, h)
	ProfileRoutes(app, h)
	UploadRoutes(app, h)
	AdminRoutes(app, h)
	FeedRoutes(app, h)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
