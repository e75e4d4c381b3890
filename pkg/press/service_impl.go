package press

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gutterpress/gutterpress/pkg/press/cache"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	cache          cache.Cache
	queue          Queue
	logger         zerolog.Logger
	validate       *validator.Validate
	variantSpecs   []VariantSpec
	now            func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first registered backend
// becomes the default unless WithDefaultBackend overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend selects which registered backend holds cover images.
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithCache sets the process-wide cache used for menu and settings snapshots
// and the dispatch lock.
func WithCache(c cache.Cache) Option {
	return func(s *service) {
		s.cache = c
	}
}

// WithQueue sets the background job queue for derivative generation.
func WithQueue(q Queue) Option {
	return func(s *service) {
		s.queue = q
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(l zerolog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// WithVariantSpecs overrides the derivative specs generated for cover images.
func WithVariantSpecs(specs ...VariantSpec) Option {
	return func(s *service) {
		s.variantSpecs = specs
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores:   make(map[string]BlobStore),
		logger:       zerolog.Nop(),
		validate:     validator.New(),
		variantSpecs: DefaultVariantSpecs,
		now:          time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}

	return s, nil
}

// Postable operations

func (s *service) CreatePostable(ctx context.Context, req CreatePostableRequest) (*Postable, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.Kind.Valid() {
		return nil, &ValidationError{Field: "kind", Reason: "must be post or page"}
	}

	now := s.now().UTC()
	p := &Postable{
		ID:          uuid.New(),
		Kind:        req.Kind,
		Title:       req.Title,
		Excerpt:     req.Excerpt,
		Body:        req.Body,
		Publish:     req.Publish,
		PublishedAt: req.PublishedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	explicit := req.Slug != ""
	if explicit {
		p.Slug = req.Slug
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		if !explicit {
			slug, err := s.allocateSlug(ctx, req.Title, p.ID)
			if err != nil {
				return nil, &PostableError{PostableID: p.ID, Op: "create", Err: err}
			}
			p.Slug = slug
		}

		err := s.repository.CreatePostable(ctx, p)
		if err == nil {
			s.logger.Info().
				Str("postable_id", p.ID.String()).
				Str("kind", string(p.Kind)).
				Str("slug", p.Slug).
				Msg("postable created")
			return p, nil
		}
		// A concurrent writer claimed the candidate between the existence
		// check and the insert; the unique index caught it, so retry with
		// the next candidate instead of failing.
		if errors.Is(err, ErrSlugTaken) && !explicit {
			continue
		}
		return nil, &PostableError{PostableID: p.ID, Op: "create", Err: err}
	}

	return nil, &PostableError{PostableID: p.ID, Op: "create", Err: ErrSlugTaken}
}

func (s *service) GetPostable(ctx context.Context, id uuid.UUID) (*Postable, error) {
	return s.repository.GetPostable(ctx, id)
}

func (s *service) GetPostableBySlug(ctx context.Context, slug string) (*Postable, error) {
	return s.repository.GetPostableBySlug(ctx, slug)
}

func (s *service) UpdatePostable(ctx context.Context, req UpdatePostableRequest) (*Postable, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	p, err := s.repository.GetPostable(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	titleChanged := req.Title != nil && *req.Title != p.Title
	slugChanged := req.Slug != nil && *req.Slug != "" && *req.Slug != p.Slug

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "cannot be blank"}
		}
		p.Title = *req.Title
	}
	if req.Excerpt != nil {
		p.Excerpt = *req.Excerpt
	}
	if req.Body != nil {
		p.Body = *req.Body
	}
	if req.Publish != nil {
		p.Publish = *req.Publish
	}
	if req.ClearPublishedAt {
		p.PublishedAt = nil
	} else if req.PublishedAt != nil {
		p.PublishedAt = req.PublishedAt
	}
	if slugChanged {
		p.Slug = *req.Slug
	}

	// An explicit slug edit always wins; otherwise a title change
	// regenerates the slug.
	needAlloc := titleChanged && !slugChanged

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		if needAlloc {
			slug, err := s.allocateSlug(ctx, p.Title, p.ID)
			if err != nil {
				return nil, &PostableError{PostableID: p.ID, Op: "update", Err: err}
			}
			p.Slug = slug
		}

		p.UpdatedAt = s.now().UTC()
		err := s.repository.UpdatePostable(ctx, p)
		if err == nil {
			s.logger.Info().
				Str("postable_id", p.ID.String()).
				Str("slug", p.Slug).
				Msg("postable updated")
			return p, nil
		}
		if errors.Is(err, ErrSlugTaken) && needAlloc {
			continue
		}
		return nil, &PostableError{PostableID: p.ID, Op: "update", Err: err}
	}

	return nil, &PostableError{PostableID: p.ID, Op: "update", Err: ErrSlugTaken}
}

func (s *service) DeletePostable(ctx context.Context, id uuid.UUID) error {
	if err := s.repository.DeletePostable(ctx, id); err != nil {
		return &PostableError{PostableID: id, Op: "delete", Err: err}
	}

	// Cascade: a menu item pointing at the destroyed record goes with it.
	if err := s.repository.DeleteMenuItemByPageID(ctx, id); err != nil && !errors.Is(err, ErrMenuItemNotFound) {
		return &PostableError{PostableID: id, Op: "delete", Err: err}
	}
	s.invalidateMenuCache()

	s.logger.Info().Str("postable_id", id.String()).Msg("postable deleted")
	return nil
}

func (s *service) ListPostables(ctx context.Context, kind PostableKind) ([]*Postable, error) {
	return s.repository.ListPostables(ctx, kind)
}

func (s *service) ListPublished(ctx context.Context, kind PostableKind) ([]*Postable, error) {
	return s.repository.ListPublished(ctx, kind, s.now().UTC())
}

// Helpers

func (s *service) backend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

func (s *service) variantSpec(name string) (VariantSpec, bool) {
	for _, spec := range s.variantSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return VariantSpec{}, false
}

// validateRequest maps validator failures onto the ValidationError taxonomy
// so callers see one error shape for all pre-persistence rejections.
func (s *service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{
			Field:  strings.ToLower(verrs[0].Field()),
			Reason: "is required",
		}
	}
	return err
}
