package errors

import (
	stdErrors "errors"
	"fmt"
)

// MissingSourceError is returned when an image has neither a source URL nor a fallback.
type MissingSourceError struct {
	Item string
}

func (e *MissingSourceError) Error() string {
	if e.Item == "" {
		return "no image URL or fallback provided"
	}
	return fmt.Sprintf("no image URL or fallback provided for %q", e.Item)
}

// NewMissingSourceError creates a MissingSourceError for the named item.
func NewMissingSourceError(item string) *MissingSourceError {
	return &MissingSourceError{Item: item}
}

// IsMissingSourceError reports whether err is a MissingSourceError (even when wrapped).
func IsMissingSourceError(err error) bool {
	var srcErr *MissingSourceError
	return stdErrors.As(err, &srcErr)
}
