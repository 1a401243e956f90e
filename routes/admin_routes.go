package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/handlers"
	"github.com/sdcpainting/referral_site/middleware"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(h.JWTSecret), middleware.AdminRequired())

	estimates := admin.Group("/estimates")
	estimates.Get("", h.AdminListEstimates)
	estimates.Get("/export", h.AdminExportEstimates)
	estimates.Get("/:estimateId", h.AdminGetEstimate)
	estimates.Put("/:estimateId/status", h.AdminUpdateEstimateStatus)
	estimates.Get("/:estimateId/pdf", h.AdminEstimatePDF)

	gallery := admin.Group("/gallery")
	gallery.Get("", h.AdminListGallery)
	gallery.Post("/:itemId/approve", h.AdminApproveGalleryItem)
	gallery.Post("/:itemId/reject", h.AdminRejectGalleryItem)
	gallery.Delete("/:itemId", h.AdminDeleteGalleryItem)

	testimonials := admin.Group("/testimonials")
	testimonials.Get("", h.AdminListTestimonials)
	testimonials.Post("/:testimonialId/approve", h.AdminApproveTestimonial)
	testimonials.Post("/:testimonialId/reject", h.AdminRejectTestimonial)
	testimonials.Delete("/:testimonialId", h.AdminDeleteTestimonial)

	users := admin.Group("/users")
	users.Get("", h.GetAllUsers)
	users.Delete("/:userId", h.AdminDeleteUser)

	deadLetters := admin.Group("/dead-letters")
	deadLetters.Get("", h.AdminListDeadLetters)
	deadLetters.Post("/:deadLetterId/requeue", h.AdminRequeueDeadLetter)
}
