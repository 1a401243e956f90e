package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
)

func AuthRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", h.RegisterUser)
	auth.Post("/login", h.LoginUser)
}
