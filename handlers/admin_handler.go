package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/services"
)

func (h *Handler) AdminListEstimates(c *fiber.Ctx) error {
	list, err := h.Estimates.List(c.UserContext(), services.EstimateFilter{
		Search: c.Query("q"),
		Status: c.Query("status"),
	})
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Handler) AdminGetEstimate(c *fiber.Ctx) error {
	est, err := h.Estimates.Get(c.UserContext(), c.Params("estimateId"))
	if err != nil {
		return err
	}
	return c.JSON(est)
}

type StatusRequest struct {
	Status string `json:"status"`
	Notify bool   `json:"notify"`
}

func (h *Handler) AdminUpdateEstimateStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	est, err := h.Estimates.UpdateStatus(c.UserContext(), c.Params("estimateId"), req.Status, h.actor(c), req.Notify)
	if err != nil {
		return err
	}
	return c.JSON(est)
}

// actor names the admin in audit fields, preferring their email.
func (h *Handler) actor(c *fiber.Ctx) string {
	userID, _ := currentUser(c)
	user, err := h.Auth.Get(c.UserContext(), userID)
	if err != nil {
		h.Log.Warn("actor lookup failed", zap.String("user_id", userID), zap.Error(err))
		return userID
	}
	return user.Email
}

func (h *Handler) AdminEstimatePDF(c *fiber.Ctx) error {
	id := c.Params("estimateId")
	pdf, err := h.Estimates.ExportPDF(c.UserContext(), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"estimate_%s.pdf\"", id))
	return c.Send(pdf)
}

func (h *Handler) AdminExportEstimates(c *fiber.Ctx) error {
	list, err := h.Estimates.List(c.UserContext(), services.EstimateFilter{
		Search: c.Query("q"),
		Status: c.Query("status"),
	})
	if err != nil {
		return err
	}

	b := new(bytes.Buffer)
	w := csv.NewWriter(b)
	headers := []string{"ID", "Submitted", "Name", "Email", "Phone", "City", "Budget", "Status", "Referral Code", "Referral Matched", "Discount %"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, est := range list {
		row := []string{
			est.ID,
			est.CreatedAt.Format("2006-01-02 15:04"),
			est.FullName,
			est.Email,
			est.Phone,
			est.Address.City,
			est.Budget,
			est.Status,
			est.ReferralCode,
			strconv.FormatBool(est.ReferralMatched),
			strconv.Itoa(est.DiscountPercent),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"estimates_%s.csv\"", time.Now().Format("2006-01-02")))
	return c.Send(b.Bytes())
}

func (h *Handler) AdminListGallery(c *fiber.Ctx) error {
	items, err := h.Gallery.ListAll(c.UserContext(), c.Query("moderation"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *Handler) AdminApproveGalleryItem(c *fiber.Ctx) error {
	item, err := h.Gallery.Approve(c.UserContext(), c.Params("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (h *Handler) AdminRejectGalleryItem(c *fiber.Ctx) error {
	item, err := h.Gallery.Reject(c.UserContext(), c.Params("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (h *Handler) AdminDeleteGalleryItem(c *fiber.Ctx) error {
	if err := h.Gallery.Delete(c.UserContext(), c.Params("itemId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) AdminListTestimonials(c *fiber.Ctx) error {
	list, err := h.Testimonials.ListAll(c.UserContext(), c.Query("moderation"))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Handler) AdminApproveTestimonial(c *fiber.Ctx) error {
	t, err := h.Testimonials.Approve(c.UserContext(), c.Params("testimonialId"))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handler) AdminRejectTestimonial(c *fiber.Ctx) error {
	t, err := h.Testimonials.Reject(c.UserContext(), c.Params("testimonialId"))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handler) AdminDeleteTestimonial(c *fiber.Ctx) error {
	if err := h.Testimonials.Delete(c.UserContext(), c.Params("testimonialId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetAllUsers(c *fiber.Ctx) error {
	users, err := h.Auth.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(out)
}

func (h *Handler) AdminDeleteUser(c *fiber.Ctx) error {
	adminID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.DeleteUser(c.UserContext(), adminID, c.Params("userId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

func (h *Handler) AdminListDeadLetters(c *fiber.Ctx) error {
	list, err := h.DeadLetters.List(c.UserContext(), c.QueryBool("all"))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.DeadLetter{}
	}
	return c.JSON(list)
}

func (h *Handler) AdminRequeueDeadLetter(c *fiber.Ctx) error {
	jobID, err := h.DeadLetters.Requeue(c.UserContext(), c.Params("deadLetterId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"job_id": jobID})
}
