package press

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// CreatePostableRequest contains parameters for creating a post or page.
// Slug is optional; when empty one is allocated from the title.
type CreatePostableRequest struct {
	Kind        PostableKind `validate:"required"`
	Title       string       `validate:"required"`
	Slug        string
	Excerpt     string
	Body        string
	Publish     bool
	PublishedAt *time.Time
}

// UpdatePostableRequest patches an existing postable. Nil fields are left
// unchanged. An explicit Slug always wins over regeneration; a changed Title
// with an unchanged Slug triggers reallocation.
type UpdatePostableRequest struct {
	ID          uuid.UUID `validate:"required"`
	Title       *string
	Slug        *string
	Excerpt     *string
	Body        *string
	Publish     *bool
	PublishedAt *time.Time
	// ClearPublishedAt unsets the publish time; it takes precedence over
	// PublishedAt.
	ClearPublishedAt bool
}

// AttachCoverImageRequest contains parameters for attaching or replacing a
// cover image.
type AttachCoverImageRequest struct {
	PostableID uuid.UUID `validate:"required"`
	FileName   string
	MimeType   string `validate:"required"`
	Reader     io.Reader
}

// AddMenuItemRequest contains parameters for adding a navigation menu entry.
// Position is optional; when nil the next available position is used.
type AddMenuItemRequest struct {
	PageID   uuid.UUID `validate:"required"`
	Position *int
	Enabled  bool
}
