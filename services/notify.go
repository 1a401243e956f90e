package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/notifications"
)

// enqueueEmail hands an email to the queue. A failure is logged and not
// returned: the record the email is about has already been saved.
func enqueueEmail(ctx context.Context, queue jobs.Enqueuer, log *zap.Logger, tpl notifications.Template, recipient string, data map[string]string) {
	if recipient == "" {
		log.Warn("email skipped, no recipient", zap.String("template", string(tpl)))
		return
	}
	id, err := queue.Enqueue(ctx, jobs.SendEmail{Template: tpl, Recipient: recipient, Context: data})
	if err != nil {
		log.Error("enqueue email failed", zap.String("template", string(tpl)), zap.String("to", recipient), zap.Error(err))
		return
	}
	log.Debug("email enqueued", zap.String("template", string(tpl)), zap.String("job_id", id))
}
