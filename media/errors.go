package media

import (
	"errors"
	"fmt"
)

// PublicProcessingMessage is what users see for any processing failure; the
// cause is only logged.
const PublicProcessingMessage = "We couldn't process that file. Please try again or upload a different one."

// ErrToolTimeout is wrapped when an external tool is killed for running too long.
var ErrToolTimeout = errors.New("media tool timed out")

// UnsupportedMediaError means the upload is not an accepted image or video.
// Retrying cannot fix it.
type UnsupportedMediaError struct {
	Filename string
	Reason   string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media %q: %s", e.Filename, e.Reason)
}

func unsupported(filename, format string, args ...any) error {
	return &UnsupportedMediaError{Filename: filename, Reason: fmt.Sprintf(format, args...)}
}

// MediaProcessingError wraps an internal failure of one pipeline step.
type MediaProcessingError struct {
	Step string
	Err  error
}

func (e *MediaProcessingError) Error() string {
	return fmt.Sprintf("media processing failed at %s: %v", e.Step, e.Err)
}

func (e *MediaProcessingError) Unwrap() error { return e.Err }

func failed(step string, err error) error {
	var unsupportedErr *UnsupportedMediaError
	if errors.As(err, &unsupportedErr) {
		return err
	}
	return &MediaProcessingError{Step: step, Err: err}
}

func IsUnsupported(err error) bool {
	var e *UnsupportedMediaError
	return errors.As(err, &e)
}
