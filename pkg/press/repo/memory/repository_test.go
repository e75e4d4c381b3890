package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gutterpress/gutterpress/pkg/press"
)

func newPostable(kind press.PostableKind, title, slug string) *press.Postable {
	now := time.Now().UTC()
	return &press.Postable{
		ID:        uuid.New(),
		Kind:      kind,
		Title:     title,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newMenuItem(pageID uuid.UUID, position int) *press.MenuItem {
	now := time.Now().UTC()
	return &press.MenuItem{
		ID:        uuid.New(),
		PageID:    pageID,
		Position:  position,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostableSlugUniqueness(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.CreatePostable(ctx, newPostable(press.PostableKindPost, "A", "shared")))

	err := repo.CreatePostable(ctx, newPostable(press.PostableKindPost, "B", "shared"))
	assert.ErrorIs(t, err, press.ErrSlugTaken)
}

func TestPostableSlugReleasedOnUpdate(t *testing.T) {
	repo := New()
	ctx := context.Background()

	p := newPostable(press.PostableKindPost, "A", "first")
	require.NoError(t, repo.CreatePostable(ctx, p))

	p.Slug = "second"
	require.NoError(t, repo.UpdatePostable(ctx, p))

	// The old slug is free again.
	require.NoError(t, repo.CreatePostable(ctx, newPostable(press.PostableKindPost, "B", "first")))

	got, err := repo.GetPostableBySlug(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestSlugExistsExcludesSelf(t *testing.T) {
	repo := New()
	ctx := context.Background()

	p := newPostable(press.PostableKindPost, "A", "mine")
	require.NoError(t, repo.CreatePostable(ctx, p))

	exists, err := repo.SlugExists(ctx, "mine", p.ID)
	require.NoError(t, err)
	assert.False(t, exists, "a record does not conflict with its own slug")

	exists, err = repo.SlugExists(ctx, "mine", uuid.New())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetPostableReturnsCopy(t *testing.T) {
	repo := New()
	ctx := context.Background()

	p := newPostable(press.PostableKindPost, "Original", "copy-check")
	require.NoError(t, repo.CreatePostable(ctx, p))

	got, err := repo.GetPostable(ctx, p.ID)
	require.NoError(t, err)
	got.Title = "Mutated"

	again, err := repo.GetPostable(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Title)
}

func TestListPublishedPredicate(t *testing.T) {
	repo := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	live := newPostable(press.PostableKindPost, "Live", "live")
	live.Publish = true
	live.PublishedAt = &past
	require.NoError(t, repo.CreatePostable(ctx, live))

	scheduled := newPostable(press.PostableKindPost, "Scheduled", "scheduled")
	scheduled.Publish = true
	scheduled.PublishedAt = &future
	require.NoError(t, repo.CreatePostable(ctx, scheduled))

	draft := newPostable(press.PostableKindPost, "Draft", "draft")
	draft.PublishedAt = &past
	require.NoError(t, repo.CreatePostable(ctx, draft))

	got, err := repo.ListPublished(ctx, press.PostableKindPost, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].Slug)
}

func TestDerivedVariantIdentity(t *testing.T) {
	repo := New()
	ctx := context.Background()

	v := &press.DerivedVariant{
		SourceKey: "originals/ab/cdef",
		Digest:    "digest-1",
		Variant:   "thumbnail",
		Key:       "derived/thumbnail/xy/z.jpg",
		Width:     300, Height: 200,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateDerivedVariant(ctx, v))

	// Same identity: rejected.
	err := repo.CreateDerivedVariant(ctx, &press.DerivedVariant{
		SourceKey: "originals/ab/cdef", Digest: "digest-1", Variant: "thumbnail",
	})
	assert.ErrorIs(t, err, press.ErrVariantExists)

	// Different digest for the same source: fine.
	require.NoError(t, repo.CreateDerivedVariant(ctx, &press.DerivedVariant{
		SourceKey: "originals/ab/cdef", Digest: "digest-2", Variant: "hero",
	}))

	_, err = repo.GetDerivedVariant(ctx, "originals/ab/cdef", "missing")
	assert.ErrorIs(t, err, press.ErrVariantNotReady)

	all, err := repo.ListDerivedVariants(ctx, "originals/ab/cdef")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMenuUniqueIndexes(t *testing.T) {
	repo := New()
	ctx := context.Background()
	pageA, pageB := uuid.New(), uuid.New()

	require.NoError(t, repo.CreateMenuItem(ctx, newMenuItem(pageA, 1)))

	err := repo.CreateMenuItem(ctx, newMenuItem(pageB, 1))
	assert.ErrorIs(t, err, press.ErrPositionTaken)

	err = repo.CreateMenuItem(ctx, newMenuItem(pageA, 2))
	assert.ErrorIs(t, err, press.ErrMenuTargetTaken)
}

func TestReorderMenuItemsSwap(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a := newMenuItem(uuid.New(), 1)
	b := newMenuItem(uuid.New(), 2)
	require.NoError(t, repo.CreateMenuItem(ctx, a))
	require.NoError(t, repo.CreateMenuItem(ctx, b))

	require.NoError(t, repo.ReorderMenuItems(ctx, map[uuid.UUID]int{a.ID: 2, b.ID: 1}))

	gotA, err := repo.GetMenuItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gotA.Position)

	gotB, err := repo.GetMenuItem(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB.Position)
}

func TestReorderMenuItemsUnknownIDRollsBack(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a := newMenuItem(uuid.New(), 1)
	require.NoError(t, repo.CreateMenuItem(ctx, a))

	err := repo.ReorderMenuItems(ctx, map[uuid.UUID]int{a.ID: 2, uuid.New(): 1})
	assert.ErrorIs(t, err, press.ErrMenuItemNotFound)

	// Nothing moved.
	got, err := repo.GetMenuItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)
}

func TestDeleteMenuItemByPageID(t *testing.T) {
	repo := New()
	ctx := context.Background()
	pageID := uuid.New()

	item := newMenuItem(pageID, 1)
	require.NoError(t, repo.CreateMenuItem(ctx, item))

	require.NoError(t, repo.DeleteMenuItemByPageID(ctx, pageID))
	_, err := repo.GetMenuItem(ctx, item.ID)
	assert.ErrorIs(t, err, press.ErrMenuItemNotFound)

	err = repo.DeleteMenuItemByPageID(ctx, pageID)
	assert.ErrorIs(t, err, press.ErrMenuItemNotFound)
}

func TestMaxMenuPosition(t *testing.T) {
	repo := New()
	ctx := context.Background()

	max, err := repo.MaxMenuPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	require.NoError(t, repo.CreateMenuItem(ctx, newMenuItem(uuid.New(), 7)))
	max, err = repo.MaxMenuPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, max)
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := New()
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, "site_name")
	assert.ErrorIs(t, err, press.ErrSettingNotFound)

	require.NoError(t, repo.SetSetting(ctx, "site_name", "Test"))
	s, err := repo.GetSetting(ctx, "site_name")
	require.NoError(t, err)
	assert.Equal(t, "Test", s.Value)

	require.NoError(t, repo.SetSettings(ctx, map[string]string{
		"a": "1",
		"b": "2",
	}))
	all, err := repo.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
