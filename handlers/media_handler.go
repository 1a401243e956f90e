package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/media"
)

// ServeMedia streams a locally stored artifact when the request carries a
// valid signed token for that exact locator.
func (h *Handler) ServeMedia(c *fiber.Ctx) error {
	if h.LocalMedia == nil {
		return fiber.ErrNotFound
	}
	locator := c.Params("*")

	if err := h.LocalMedia.Verify(locator, c.Query("token")); err != nil {
		return media.ErrInvalidToken
	}
	path, err := h.LocalMedia.Path(locator)
	if errors.Is(err, media.ErrInvalidLocator) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.SendFile(path)
}
