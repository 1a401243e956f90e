package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/services"
	"github.com/sdcpainting/referral_site/store"
)

// ErrorHandler renders every error returned by a handler as
// {"status":"error","code":...,"message":...}. Unexpected errors are logged
// and answered with a generic message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, body := classify(err)
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
			)
		}
		body["status"] = "error"
		body["code"] = code
		return c.Status(code).JSON(body)
	}
}

func classify(err error) (int, fiber.Map) {
	var (
		fiberErr    *fiber.Error
		validation  *services.ValidationError
		unsupported *media.UnsupportedMediaError
		processing  *media.MediaProcessingError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiber.Map{"message": fiberErr.Message}
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, fiber.Map{"message": "Validation failed", "fields": validation.Fields}
	case errors.As(err, &unsupported):
		return fiber.StatusUnsupportedMediaType, fiber.Map{"message": unsupported.Reason}
	case errors.As(err, &processing):
		return fiber.StatusInternalServerError, fiber.Map{"message": media.PublicProcessingMessage}
	case errors.Is(err, services.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"message": "Not found"}
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, fiber.Map{"message": "Invalid email or password"}
	case errors.Is(err, services.ErrForbidden), errors.Is(err, media.ErrInvalidToken):
		return fiber.StatusForbidden, fiber.Map{"message": "Forbidden"}
	case errors.Is(err, services.ErrEmailTaken):
		return fiber.StatusConflict, fiber.Map{"message": "Email already exists"}
	case errors.Is(err, services.ErrReferralLimit):
		return fiber.StatusConflict, fiber.Map{"message": "Referral code limit reached"}
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, jobs.ErrAlreadyRequeued):
		return fiber.StatusConflict, fiber.Map{"message": err.Error()}
	case errors.Is(err, services.ErrDuplicateCode), errors.Is(err, store.ErrConflict):
		return fiber.StatusConflict, fiber.Map{"message": "Please try again"}
	default:
		return fiber.StatusInternalServerError, fiber.Map{"message": "Internal server error"}
	}
}
