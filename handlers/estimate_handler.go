package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/middleware"
	"github.com/sdcpainting/referral_site/services"
)

// SubmitEstimate is public; a logged-in submitter is linked to the request.
func (h *Handler) SubmitEstimate(c *fiber.Ctx) error {
	var req services.EstimateInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	userID, _ := middleware.CurrentUserID(c)

	est, err := h.Estimates.Submit(c.UserContext(), req, userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":               est.ID,
		"status":           est.Status,
		"referral_matched": est.ReferralMatched,
		"discount_percent": est.DiscountPercent,
		"message":          "Thanks! We received your request and will be in touch shortly.",
	})
}
