package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gutterpress/gutterpress/pkg/press"
	"github.com/gutterpress/gutterpress/pkg/press/ordering"
)

type variantKey struct {
	sourceKey string
	digest    string
}

// Repository implements press.Repository using in-memory storage. It enforces
// the same unique indexes a relational backend would: postable slug, menu
// position and menu page id, and the (source key, digest) variant identity.
type Repository struct {
	mu        sync.RWMutex
	postables map[uuid.UUID]*press.Postable
	bySlug    map[string]uuid.UUID
	variants  map[variantKey]*press.DerivedVariant
	menuItems map[uuid.UUID]*press.MenuItem
	settings  map[string]*press.Setting
}

// New creates a new in-memory repository
func New() press.Repository {
	return &Repository{
		postables: make(map[uuid.UUID]*press.Postable),
		bySlug:    make(map[string]uuid.UUID),
		variants:  make(map[variantKey]*press.DerivedVariant),
		menuItems: make(map[uuid.UUID]*press.MenuItem),
		settings:  make(map[string]*press.Setting),
	}
}

// Postable operations

func (r *Repository) CreatePostable(ctx context.Context, p *press.Postable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, exists := r.bySlug[p.Slug]; exists && owner != p.ID {
		return press.ErrSlugTaken
	}

	// Store a copy to avoid external modifications
	postableCopy := clonePostable(p)
	r.postables[p.ID] = postableCopy
	r.bySlug[p.Slug] = p.ID
	return nil
}

func (r *Repository) GetPostable(ctx context.Context, id uuid.UUID) (*press.Postable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.postables[id]
	if !exists {
		return nil, press.ErrPostableNotFound
	}
	return clonePostable(p), nil
}

func (r *Repository) GetPostableBySlug(ctx context.Context, slug string) (*press.Postable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.bySlug[slug]
	if !exists {
		return nil, press.ErrPostableNotFound
	}
	return clonePostable(r.postables[id]), nil
}

func (r *Repository) UpdatePostable(ctx context.Context, p *press.Postable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.postables[p.ID]
	if !exists {
		return press.ErrPostableNotFound
	}
	if owner, taken := r.bySlug[p.Slug]; taken && owner != p.ID {
		return press.ErrSlugTaken
	}

	if current.Slug != p.Slug {
		delete(r.bySlug, current.Slug)
	}
	r.postables[p.ID] = clonePostable(p)
	r.bySlug[p.Slug] = p.ID
	return nil
}

func (r *Repository) DeletePostable(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.postables[id]
	if !exists {
		return press.ErrPostableNotFound
	}
	delete(r.bySlug, p.Slug)
	delete(r.postables, id)
	return nil
}

func (r *Repository) ListPostables(ctx context.Context, kind press.PostableKind) ([]*press.Postable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*press.Postable
	for _, p := range r.postables {
		if kind != "" && p.Kind != kind {
			continue
		}
		out = append(out, clonePostable(p))
	}
	sortPostables(out)
	return out, nil
}

func (r *Repository) ListPublished(ctx context.Context, kind press.PostableKind, now time.Time) ([]*press.Postable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*press.Postable
	for _, p := range r.postables {
		if kind != "" && p.Kind != kind {
			continue
		}
		if !press.IsPublished(p.Publish, p.PublishedAt, now) {
			continue
		}
		out = append(out, clonePostable(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(*out[j].PublishedAt)
	})
	return out, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.bySlug[slug]
	return exists && owner != excludeID, nil
}

// Derived variant operations

func (r *Repository) CreateDerivedVariant(ctx context.Context, v *press.DerivedVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := variantKey{sourceKey: v.SourceKey, digest: v.Digest}
	if _, exists := r.variants[key]; exists {
		return press.ErrVariantExists
	}
	variantCopy := *v
	r.variants[key] = &variantCopy
	return nil
}

func (r *Repository) GetDerivedVariant(ctx context.Context, sourceKey, digest string) (*press.DerivedVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.variants[variantKey{sourceKey: sourceKey, digest: digest}]
	if !exists {
		return nil, press.ErrVariantNotReady
	}
	variantCopy := *v
	return &variantCopy, nil
}

func (r *Repository) ListDerivedVariants(ctx context.Context, sourceKey string) ([]*press.DerivedVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*press.DerivedVariant
	for key, v := range r.variants {
		if key.sourceKey != sourceKey {
			continue
		}
		variantCopy := *v
		out = append(out, &variantCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out, nil
}

// Menu operations

func (r *Repository) CreateMenuItem(ctx context.Context, item *press.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.menuItems {
		if existing.ID == item.ID {
			continue
		}
		if existing.Position == item.Position {
			return press.ErrPositionTaken
		}
		if existing.PageID == item.PageID {
			return press.ErrMenuTargetTaken
		}
	}

	itemCopy := *item
	r.menuItems[item.ID] = &itemCopy
	return nil
}

func (r *Repository) GetMenuItem(ctx context.Context, id uuid.UUID) (*press.MenuItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.menuItems[id]
	if !exists {
		return nil, press.ErrMenuItemNotFound
	}
	itemCopy := *item
	return &itemCopy, nil
}

func (r *Repository) UpdateMenuItem(ctx context.Context, item *press.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.menuItems[item.ID]; !exists {
		return press.ErrMenuItemNotFound
	}
	for _, existing := range r.menuItems {
		if existing.ID == item.ID {
			continue
		}
		if existing.Position == item.Position {
			return press.ErrPositionTaken
		}
		if existing.PageID == item.PageID {
			return press.ErrMenuTargetTaken
		}
	}

	itemCopy := *item
	r.menuItems[item.ID] = &itemCopy
	return nil
}

func (r *Repository) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.menuItems[id]; !exists {
		return press.ErrMenuItemNotFound
	}
	delete(r.menuItems, id)
	return nil
}

func (r *Repository) DeleteMenuItemByPageID(ctx context.Context, pageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, item := range r.menuItems {
		if item.PageID == pageID {
			delete(r.menuItems, id)
			return nil
		}
	}
	return press.ErrMenuItemNotFound
}

func (r *Repository) ListMenuItems(ctx context.Context) ([]*press.MenuItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*press.MenuItem, 0, len(r.menuItems))
	for _, item := range r.menuItems {
		itemCopy := *item
		out = append(out, &itemCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *Repository) MaxMenuPosition(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, item := range r.menuItems {
		if item.Position > max {
			max = item.Position
		}
	}
	return max, nil
}

// ReorderMenuItems applies the two-phase rewrite against a working copy,
// enforcing position uniqueness on every individual write just as a unique
// index would, then swaps the result in. A failure leaves the stored state
// untouched, matching transactional rollback.
func (r *Repository) ReorderMenuItems(ctx context.Context, positions map[uuid.UUID]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range positions {
		if _, exists := r.menuItems[id]; !exists {
			return press.ErrMenuItemNotFound
		}
	}

	max := 0
	working := make(map[uuid.UUID]*press.MenuItem, len(r.menuItems))
	for id, item := range r.menuItems {
		itemCopy := *item
		working[id] = &itemCopy
		if item.Position > max {
			max = item.Position
		}
	}

	apply := func(w ordering.Write) error {
		for id, item := range working {
			if id != w.ID && item.Position == w.Position {
				return press.ErrPositionTaken
			}
		}
		working[w.ID].Position = w.Position
		return nil
	}

	plan := ordering.BuildPlan(max, positions)
	for _, w := range plan.Phase1 {
		if err := apply(w); err != nil {
			return err
		}
	}
	for _, w := range plan.Phase2 {
		if err := apply(w); err != nil {
			return err
		}
	}

	r.menuItems = working
	return nil
}

// Settings operations

func (r *Repository) GetSetting(ctx context.Context, key string) (*press.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	setting, exists := r.settings[key]
	if !exists {
		return nil, press.ErrSettingNotFound
	}
	settingCopy := *setting
	return &settingCopy, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[key] = &press.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

func (r *Repository) SetSettings(ctx context.Context, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for key, value := range values {
		r.settings[key] = &press.Setting{Key: key, Value: value, UpdatedAt: now}
	}
	return nil
}

func (r *Repository) ListSettings(ctx context.Context) ([]*press.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*press.Setting, 0, len(r.settings))
	for _, setting := range r.settings {
		settingCopy := *setting
		out = append(out, &settingCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func clonePostable(p *press.Postable) *press.Postable {
	postableCopy := *p
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		postableCopy.PublishedAt = &t
	}
	if p.CoverImage != nil {
		img := *p.CoverImage
		postableCopy.CoverImage = &img
	}
	return &postableCopy
}

func sortPostables(items []*press.Postable) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}
