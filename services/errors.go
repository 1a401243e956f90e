package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateCode      = errors.New("could not generate a unique referral code")
	ErrReferralLimit      = errors.New("referral code limit reached")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError maps each offending input field (by its JSON name) to a
// human readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.FieldNames()
	return "validation failed: " + strings.Join(names, ", ")
}

// FieldNames returns the offending fields in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
