package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/middleware"
)

func UploadRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	uploads := api.Group("/uploads", middleware.Protected(h.JWTSecret))
	uploads.Post("", h.UploadMedia)
}
