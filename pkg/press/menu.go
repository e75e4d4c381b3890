package press

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/gutterpress/gutterpress/pkg/press/cache"
)

// Menu operations

const maxPositionAttempts = 5

func (s *service) AddMenuItem(ctx context.Context, req AddMenuItemRequest) (*MenuItem, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	page, err := s.repository.GetPostable(ctx, req.PageID)
	if err != nil {
		if errors.Is(err, ErrPostableNotFound) {
			return nil, &ValidationError{Field: "page_id", Reason: "page does not exist"}
		}
		return nil, err
	}
	if page.Kind != PostableKindPage {
		return nil, &ValidationError{Field: "page_id", Reason: "only pages can appear in the menu"}
	}

	now := s.now().UTC()
	item := &MenuItem{
		ID:        uuid.New(),
		PageID:    req.PageID,
		Enabled:   req.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	explicit := req.Position != nil
	if explicit {
		item.Position = *req.Position
	}

	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		if !explicit {
			max, err := s.repository.MaxMenuPosition(ctx)
			if err != nil {
				return nil, err
			}
			item.Position = max + 1
		}

		err := s.repository.CreateMenuItem(ctx, item)
		if err == nil {
			s.invalidateMenuCache()
			s.logger.Info().
				Str("menu_item_id", item.ID.String()).
				Str("page_id", item.PageID.String()).
				Int("position", item.Position).
				Msg("menu item added")
			return item, nil
		}
		// Another writer grabbed the computed position; recompute and retry.
		if errors.Is(err, ErrPositionTaken) && !explicit {
			continue
		}
		return nil, err
	}

	return nil, ErrPositionTaken
}

func (s *service) RemoveMenuItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repository.DeleteMenuItem(ctx, id); err != nil {
		return err
	}
	s.invalidateMenuCache()
	s.logger.Info().Str("menu_item_id", id.String()).Msg("menu item removed")
	return nil
}

func (s *service) SetMenuItemEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*MenuItem, error) {
	item, err := s.repository.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Enabled == enabled {
		return item, nil
	}

	item.Enabled = enabled
	item.UpdatedAt = s.now().UTC()
	if err := s.repository.UpdateMenuItem(ctx, item); err != nil {
		return nil, err
	}
	s.invalidateMenuCache()
	return item, nil
}

// ReorderMenu atomically rewrites the positions of the given items. Positions
// must be positive and mutually distinct; the repository applies them with the
// two-phase rewrite so no intermediate state violates position uniqueness.
func (s *service) ReorderMenu(ctx context.Context, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 1 {
			return &ValidationError{Field: "position", Reason: "must be a positive integer"}
		}
		if seen[pos] {
			return &ValidationError{Field: "position", Reason: "positions must be unique"}
		}
		seen[pos] = true
	}

	if err := s.repository.ReorderMenuItems(ctx, positions); err != nil {
		return err
	}

	// Invalidate only after the commit so a racing read cannot repopulate the
	// cache with pre-reorder data and have it survive.
	s.invalidateMenuCache()
	s.logger.Info().Int("items", len(positions)).Msg("menu reordered")
	return nil
}

// ActiveMenu returns the navigation read model: enabled items whose target
// pages are currently published, ordered by position. The result is cached
// and invalidated by every menu or page write.
func (s *service) ActiveMenu(ctx context.Context) ([]MenuEntry, error) {
	return cache.GetOrLoad(s.cache, MenuCacheKey, MenuCacheTTL, func() ([]MenuEntry, error) {
		return s.loadActiveMenu(ctx)
	})
}

func (s *service) loadActiveMenu(ctx context.Context) ([]MenuEntry, error) {
	items, err := s.repository.ListMenuItems(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entries := make([]MenuEntry, 0, len(items))
	for _, item := range items {
		if !item.Enabled {
			continue
		}
		page, err := s.repository.GetPostable(ctx, item.PageID)
		if err != nil {
			if errors.Is(err, ErrPostableNotFound) {
				// Dangling entry; skip rather than fail the whole menu.
				continue
			}
			return nil, err
		}
		if page.Kind != PostableKindPage || !page.Published(now) {
			continue
		}
		entries = append(entries, MenuEntry{
			ID:       item.ID,
			PageID:   item.PageID,
			Name:     page.Title,
			Path:     page.Path(),
			Position: item.Position,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

func (s *service) MenuForAdmin(ctx context.Context) ([]*MenuItem, error) {
	items, err := s.repository.ListMenuItems(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (s *service) invalidateMenuCache() {
	s.cache.Delete(MenuCacheKey)
	menuCacheInvalidations.Inc()
}
