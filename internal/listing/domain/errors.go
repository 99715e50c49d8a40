package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrListingNotFound    = errors.New("listing not found")
	ErrPhotoNotFound      = errors.New("photo not found")
	ErrForbidden          = errors.New("user not authorized to perform this action")
	ErrPhotoLimitReached  = errors.New("photo limit reached for this scope")
	ErrInvalidListingData = errors.New("invalid listing data")
	ErrUnsupportedImage   = errors.New("unsupported or corrupt image payload")
	ErrInvalidObjectURL   = errors.New("unable to extract object key from url")
)

// ValidationError reports per-field boundary validation failures. It is
// raised before any storage call, so a caller can always retry after
// correcting the input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidListingData.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidListingData }

// StorageError wraps a failed database or object-store operation with the
// operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
