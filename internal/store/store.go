// Package store persists the content hierarchy, storage locations and
// account records through GORM.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"wownote/internal/apperr"
)

// notFound converts gorm.ErrRecordNotFound into an apperr not-found error.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return err
}

func requireName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperr.Validation("name is required")
	}
	return trimmed, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
