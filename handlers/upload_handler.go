package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sdcpainting/referral_site/services"
)

// UploadMedia accepts a multipart "file" and queues it for processing. The
// response only confirms receipt; the item appears once the worker is done
// and an admin approves it.
func (h *Handler) UploadMedia(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "A file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded file")
	}
	defer file.Close()

	itemID, err := h.Gallery.AcceptUpload(c.UserContext(), services.UploadInput{
		Filename:    fileHeader.Filename,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		UploaderID:  userID,
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":      itemID,
		"message": "Thanks! Your upload is being processed and will appear after review.",
	})
}

func (h *Handler) ListGallery(c *fiber.Ctx) error {
	items, err := h.Gallery.ListApproved(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(items)
}
