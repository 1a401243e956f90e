// Package jobs is the asynchronous work boundary: callers enqueue typed jobs
// and a worker process drains them with retries and dead-lettering.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/notifications"
)

type Kind string

const (
	KindSendEmail    Kind = "send-email"
	KindProcessMedia Kind = "process-media"
)

var ErrUnknownKind = errors.New("unknown job kind")

// Job is a closed set of payload types; see SendEmail and ProcessMedia.
type Job interface {
	Kind() Kind
	isJob()
}

type SendEmail struct {
	Template  notifications.Template `json:"template"`
	Recipient string                 `json:"recipient"`
	Context   map[string]string      `json:"context,omitempty"`
}

func (SendEmail) Kind() Kind { return KindSendEmail }
func (SendEmail) isJob()     {}

// ProcessMedia refers to an upload already written to the pending area.
// ItemID is fixed at upload time so a redelivered job produces the same
// gallery item.
type ProcessMedia struct {
	ItemID      string `json:"item_id"`
	PendingFile string `json:"pending_file"`
	Filename    string `json:"filename"`
	UploaderID  string `json:"uploader_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (ProcessMedia) Kind() Kind { return KindProcessMedia }
func (ProcessMedia) isJob()     {}

// Decode turns an envelope back into its typed job.
func Decode(env models.JobEnvelope) (Job, error) {
	switch Kind(env.JobName) {
	case KindSendEmail:
		var job SendEmail
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.JobName, err)
		}
		return job, nil
	case KindProcessMedia:
		var job ProcessMedia
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.JobName, err)
		}
		return job, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.JobName)
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the worker dead-letters it on
// the first failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
