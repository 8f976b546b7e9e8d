package contracts

import (
	"errors"
	"strings"
)

const (
	ErrorCategoryAPI        = "api"
	ErrorCategoryNetwork    = "network"
	ErrorCategoryStorage    = "storage"
	ErrorCategoryValidation = "validation"
)

// CategorizedError tags an error with the failure class the engine
// reports to metrics and callers.
type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryNetwork:
		return ErrorCategoryNetwork
	case ErrorCategoryStorage:
		return ErrorCategoryStorage
	case ErrorCategoryValidation:
		return ErrorCategoryValidation
	default:
		return ErrorCategoryAPI
	}
}

// WrapCategorizedError attaches a category, keeping an existing one.
func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeErrorCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	return ErrorCategoryAPI
}
