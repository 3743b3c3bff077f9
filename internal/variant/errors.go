package variant

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDuplicateSKU = errors.New("duplicate SKU")

// ValidationError is a problem the caller should show to the user, as
// opposed to an unexpected failure worth retrying.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DuplicateSKUError names the SKUs shared by more than one variant of an item.
type DuplicateSKUError struct {
	SKUs []string
}

func (e *DuplicateSKUError) Error() string {
	if len(e.SKUs) == 0 {
		return ErrDuplicateSKU.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateSKU, strings.Join(e.SKUs, ", "))
}

func (e *DuplicateSKUError) Unwrap() error {
	return ErrDuplicateSKU
}

// IsValidation reports whether err is something the user can fix, including
// duplicate SKUs.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrDuplicateSKU)
}
