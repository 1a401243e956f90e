package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/middleware"
)

func PublicRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Post("/estimates", middleware.OptionalAuth(h.JWTSecret), h.SubmitEstimate)
	api.Get("/referrals/:code", h.CheckReferralCode)
	api.Get("/gallery", h.ListGallery)
	api.Get("/testimonials", h.ListTestimonials)

	// Signed links point here for locally stored media.
	app.Get("/media/*", h.ServeMedia)
}
