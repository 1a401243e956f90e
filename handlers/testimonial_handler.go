package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/services"
)

func (h *Handler) SubmitTestimonial(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req services.TestimonialInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	t, err := h.Testimonials.Submit(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) ListTestimonials(c *fiber.Ctx) error {
	list, err := h.Testimonials.ListApproved(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}
