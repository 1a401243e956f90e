package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/services"
)

func (h *Handler) GetMyProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.Auth.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(user))
}

func (h *Handler) UpdateMyProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req services.ProfileInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Auth.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(user))
}

func (h *Handler) ChangeMyPassword(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req services.PasswordInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.Auth.ChangePassword(c.UserContext(), userID, req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

func (h *Handler) GetMyUploads(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.Gallery.ListForUploader(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(items)
}
