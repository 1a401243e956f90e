package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/services"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req services.SignupInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Auth.Signup(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

func (h *Handler) LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	token, user, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": token, "user": toUserResponse(user)})
}
