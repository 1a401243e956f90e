package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/middleware"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/services"
	"github.com/sdcpainting/referral_site/websocket"
)

// Handler carries the services every HTTP handler needs.
type Handler struct {
	Auth         *services.AuthService
	Referrals    *services.ReferralService
	Estimates    *services.EstimateService
	Gallery      *services.GalleryService
	Testimonials *services.TestimonialService
	DeadLetters  *jobs.DeadLetterAdmin
	// LocalMedia serves artifacts stored on disk; nil when media lives in
	// Cloudinary only.
	LocalMedia *media.LocalStorage
	Hub        *websocket.Hub
	JWTSecret  string
	Log        *zap.Logger
}

type UserResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	return nil
}

func currentUser(c *fiber.Ctx) (string, error) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired JWT")
	}
	return id, nil
}
