package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks malformed input (empty file list, blank note, ...).
	ErrValidation = errors.New("validation error")
	// ErrPermission marks an ownership or access violation.
	ErrPermission = errors.New("permission denied")
	// ErrIntegrity marks an operation that would break an invariant.
	ErrIntegrity = errors.New("integrity violation")
	// ErrNotFound marks a missing or invisible document, file, note or tag.
	ErrNotFound = errors.New("not found")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func permissionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

func integrityError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// translate maps gorm's not-found error onto ErrNotFound for what.
func translate(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError("%s not found", what)
	}
	return err
}
