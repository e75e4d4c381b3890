package press

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for postable, variant, menu and settings
// persistence. Implementations must enforce the unique indexes on slug, menu
// position and menu page id, returning ErrSlugTaken, ErrPositionTaken and
// ErrMenuTargetTaken respectively; these are the backstop behind the
// check-then-write sequences in the service layer.
type Repository interface {
	// Postable operations
	CreatePostable(ctx context.Context, p *Postable) error
	GetPostable(ctx context.Context, id uuid.UUID) (*Postable, error)
	GetPostableBySlug(ctx context.Context, slug string) (*Postable, error)
	UpdatePostable(ctx context.Context, p *Postable) error
	DeletePostable(ctx context.Context, id uuid.UUID) error
	ListPostables(ctx context.Context, kind PostableKind) ([]*Postable, error)
	// ListPublished applies the publication policy as a datastore predicate;
	// it must agree with IsPublished for the same now.
	ListPublished(ctx context.Context, kind PostableKind, now time.Time) ([]*Postable, error)
	// SlugExists reports whether any record other than excludeID holds slug.
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)

	// Derived variant operations. A row's existence means the derivative is
	// ready; CreateDerivedVariant returns ErrVariantExists on duplicates.
	CreateDerivedVariant(ctx context.Context, v *DerivedVariant) error
	GetDerivedVariant(ctx context.Context, sourceKey, digest string) (*DerivedVariant, error)
	ListDerivedVariants(ctx context.Context, sourceKey string) ([]*DerivedVariant, error)

	// Menu operations
	CreateMenuItem(ctx context.Context, item *MenuItem) error
	GetMenuItem(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	UpdateMenuItem(ctx context.Context, item *MenuItem) error
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
	DeleteMenuItemByPageID(ctx context.Context, pageID uuid.UUID) error
	ListMenuItems(ctx context.Context) ([]*MenuItem, error)
	MaxMenuPosition(ctx context.Context) (int, error)
	// ReorderMenuItems applies the two-phase position rewrite atomically:
	// no reader observes two items sharing a position, and a failure rolls
	// the whole batch back.
	ReorderMenuItems(ctx context.Context, positions map[uuid.UUID]int) error

	// Settings operations
	GetSetting(ctx context.Context, key string) (*Setting, error)
	SetSetting(ctx context.Context, key, value string) error
	// SetSettings upserts all pairs in one transaction.
	SetSettings(ctx context.Context, values map[string]string) error
	ListSettings(ctx context.Context) ([]*Setting, error)
}

// BlobStore defines the interface for object storage backends holding
// original and derived binary assets.
type BlobStore interface {
	// Upload stores content under objectKey.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams stores content with an explicit MIME type.
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download retrieves content directly.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes content.
	Delete(ctx context.Context, objectKey string) error

	// GetDownloadURL returns a URL for downloading content.
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)

	// GetObjectMeta retrieves metadata for a stored object.
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// JobTypeGenerateDerivatives is the single background job type: generate all
// configured derivatives for a postable's cover image.
const JobTypeGenerateDerivatives = "generate_derivatives"

// Job is a unit of asynchronous work. Delivery is at-least-once; consumers
// must be idempotent.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	PostableID uuid.UUID `json:"postable_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue defines the interface for scheduling background jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}
