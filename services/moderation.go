package services

import (
	"fmt"

	"github.com/sdcpainting/referral_site/models"
)

// checkModeration allows pending→approved and pending→rejected only.
func checkModeration(current, target string) error {
	if target != models.ModerationApproved && target != models.ModerationRejected {
		return fmt.Errorf("%w: unknown moderation state %q", ErrInvalidTransition, target)
	}
	if current != models.ModerationPending {
		return fmt.Errorf("%w: already %s", ErrInvalidTransition, current)
	}
	return nil
}
