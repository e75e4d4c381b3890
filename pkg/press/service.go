package press

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface of the content lifecycle engine.
type Service interface {
	// Postable operations
	CreatePostable(ctx context.Context, req CreatePostableRequest) (*Postable, error)
	GetPostable(ctx context.Context, id uuid.UUID) (*Postable, error)
	GetPostableBySlug(ctx context.Context, slug string) (*Postable, error)
	UpdatePostable(ctx context.Context, req UpdatePostableRequest) (*Postable, error)
	DeletePostable(ctx context.Context, id uuid.UUID) error
	ListPostables(ctx context.Context, kind PostableKind) ([]*Postable, error)
	ListPublished(ctx context.Context, kind PostableKind) ([]*Postable, error)

	// Cover image and derivative operations
	AttachCoverImage(ctx context.Context, req AttachCoverImageRequest) (*Postable, error)
	RemoveCoverImage(ctx context.Context, id uuid.UUID) (*Postable, error)
	CoverImageURL(ctx context.Context, id uuid.UUID) (string, error)
	EnqueueDerivatives(ctx context.Context, id uuid.UUID) (bool, error)
	ProcessDerivatives(ctx context.Context, id uuid.UUID) error
	VariantReference(ctx context.Context, id uuid.UUID, variant string) (*DerivedVariant, error)
	VariantURL(ctx context.Context, id uuid.UUID, variant string) (string, error)
	DownloadVariant(ctx context.Context, id uuid.UUID, variant string) (io.ReadCloser, error)

	// Menu operations
	AddMenuItem(ctx context.Context, req AddMenuItemRequest) (*MenuItem, error)
	RemoveMenuItem(ctx context.Context, id uuid.UUID) error
	SetMenuItemEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*MenuItem, error)
	ReorderMenu(ctx context.Context, positions map[uuid.UUID]int) error
	ActiveMenu(ctx context.Context) ([]MenuEntry, error)
	MenuForAdmin(ctx context.Context) ([]*MenuItem, error)

	// Settings operations
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	UpdateSettings(ctx context.Context, values map[string]string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}
