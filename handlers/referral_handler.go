package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/services"
)

type ReferralResponse struct {
	*models.ReferralCode
	ShareURL string `json:"share_url"`
}

func (h *Handler) CreateReferralCode(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	rec, err := h.Referrals.GenerateCode(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ReferralResponse{ReferralCode: rec, ShareURL: h.Referrals.ShareURL(rec.Code)})
}

func (h *Handler) GetMyReferralCodes(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	codes, err := h.Referrals.ListByOwner(c.UserContext(), userID)
	if err != nil {
		return err
	}
	out := make([]ReferralResponse, 0, len(codes))
	for _, rec := range codes {
		out = append(out, ReferralResponse{ReferralCode: rec, ShareURL: h.Referrals.ShareURL(rec.Code)})
	}
	return c.JSON(out)
}

// CheckReferralCode answers the estimate form's live check without revealing
// who owns the code.
func (h *Handler) CheckReferralCode(c *fiber.Ctx) error {
	rec, err := h.Referrals.Lookup(c.UserContext(), c.Params("code"))
	if errors.Is(err, services.ErrNotFound) {
		return c.JSON(fiber.Map{"valid": false})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"valid": !rec.Used})
}
