package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/middleware"
)

func ProfileRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	profile := api.Group("/profile/me", middleware.Protected(h.JWTSecret))
	profile.Get("", h.GetMyProfile)
	profile.Put("", h.UpdateMyProfile)
	profile.Put("/password", h.ChangeMyPassword)
	profile.Get("/referrals", h.GetMyReferralCodes)
	profile.Post("/referrals", h.CreateReferralCode)
	profile.Get("/uploads", h.GetMyUploads)
	profile.Post("/testimonials", h.SubmitTestimonial)
}
