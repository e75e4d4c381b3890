package press

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrPostableNotFound indicates a postable was not found
	ErrPostableNotFound = errors.New("postable not found")

	// ErrMenuItemNotFound indicates a menu item was not found
	ErrMenuItemNotFound = errors.New("menu item not found")

	// ErrSettingNotFound indicates a stored setting was not found
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSlugTaken indicates a slug uniqueness violation at write time.
	// Slug allocation retries on it; it only escapes for explicit slug edits.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrPositionTaken indicates a menu position uniqueness violation
	ErrPositionTaken = errors.New("menu position already taken")

	// ErrMenuTargetTaken indicates the target page already has a menu item
	ErrMenuTargetTaken = errors.New("page already has a menu item")

	// ErrVariantExists indicates the derived variant record already exists.
	// Job execution treats it as success.
	ErrVariantExists = errors.New("derived variant already exists")

	// ErrVariantNotReady indicates a requested derivative has not been
	// generated yet. This is a normal outcome, not a failure: callers render
	// without the derivative and a job has been dispatched.
	ErrVariantNotReady = errors.New("derived variant not ready")

	// ErrUnknownVariant indicates an unconfigured variant name was requested
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrNoCoverImage indicates the postable has no cover image attached
	ErrNoCoverImage = errors.New("no cover image attached")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")
)

// ValidationError rejects a request before persistence. It is surfaced to the
// caller synchronously.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PostableError represents an error related to postable operations
type PostableError struct {
	PostableID uuid.UUID
	Op         string
	Err        error
}

func (e *PostableError) Error() string {
	return fmt.Sprintf("postable operation %s failed for %s: %v", e.Op, e.PostableID, e.Err)
}

func (e *PostableError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
