package press_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gutterpress/gutterpress/pkg/press"
)

func createPublishedPage(t *testing.T, svc press.Service, title string) *press.Postable {
	t.Helper()
	at := time.Now().Add(-time.Hour)
	p, err := svc.CreatePostable(context.Background(), press.CreatePostableRequest{
		Kind: press.PostableKindPage, Title: title, Publish: true, PublishedAt: &at,
	})
	require.NoError(t, err)
	return p
}

func TestAddMenuItemAssignsNextPosition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := createPublishedPage(t, svc, "About")
	b := createPublishedPage(t, svc, "Contact")

	first, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: a.ID, Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)

	second, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: b.ID, Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)
}

func TestAddMenuItemRejectsPosts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "A Post",
	})
	require.NoError(t, err)

	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: post.ID, Enabled: true})
	assert.True(t, press.IsValidation(err))
}

func TestAddMenuItemRejectsMissingPage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddMenuItem(context.Background(), press.AddMenuItemRequest{
		PageID: uuid.New(), Enabled: true,
	})
	assert.True(t, press.IsValidation(err))
}

func TestAddMenuItemDuplicateTarget(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	page := createPublishedPage(t, svc, "About")
	_, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: page.ID, Enabled: true})
	require.NoError(t, err)

	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: page.ID, Enabled: true})
	assert.ErrorIs(t, err, press.ErrMenuTargetTaken)
}

func TestAddMenuItemExplicitPositionConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := createPublishedPage(t, svc, "About")
	b := createPublishedPage(t, svc, "Contact")

	pos := 1
	_, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: a.ID, Position: &pos, Enabled: true})
	require.NoError(t, err)

	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: b.ID, Position: &pos, Enabled: true})
	assert.ErrorIs(t, err, press.ErrPositionTaken)
}

func TestReorderMenuSwap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := createPublishedPage(t, svc, "About")
	b := createPublishedPage(t, svc, "Contact")

	itemA, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: a.ID, Enabled: true})
	require.NoError(t, err)
	itemB, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: b.ID, Enabled: true})
	require.NoError(t, err)

	// Swapping two adjacent positions is the canonical case a naive one-by-one
	// rewrite cannot do under a uniqueness constraint.
	err = svc.ReorderMenu(ctx, map[uuid.UUID]int{itemA.ID: 2, itemB.ID: 1})
	require.NoError(t, err)

	items, err := svc.MenuForAdmin(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, itemB.ID, items[0].ID)
	assert.Equal(t, 1, items[0].Position)
	assert.Equal(t, itemA.ID, items[1].ID)
	assert.Equal(t, 2, items[1].Position)
}

func TestReorderMenuFullRotation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		page := createPublishedPage(t, svc, title)
		item, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: page.ID, Enabled: true})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	// Rotate every position by one.
	want := map[uuid.UUID]int{ids[0]: 2, ids[1]: 3, ids[2]: 4, ids[3]: 1}
	require.NoError(t, svc.ReorderMenu(ctx, want))

	items, err := svc.MenuForAdmin(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, ids[3], items[0].ID)
	assert.Equal(t, ids[0], items[1].ID)
	assert.Equal(t, ids[1], items[2].ID)
	assert.Equal(t, ids[2], items[3].ID)
}

func TestReorderMenuValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	page := createPublishedPage(t, svc, "About")
	item, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: page.ID, Enabled: true})
	require.NoError(t, err)

	err = svc.ReorderMenu(ctx, map[uuid.UUID]int{item.ID: 0})
	assert.True(t, press.IsValidation(err), "non-positive position")

	other := createPublishedPage(t, svc, "Contact")
	itemB, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: other.ID, Enabled: true})
	require.NoError(t, err)

	err = svc.ReorderMenu(ctx, map[uuid.UUID]int{item.ID: 1, itemB.ID: 1})
	assert.True(t, press.IsValidation(err), "duplicate positions")

	err = svc.ReorderMenu(ctx, map[uuid.UUID]int{uuid.New(): 1})
	assert.ErrorIs(t, err, press.ErrMenuItemNotFound)
}

func TestActiveMenuFiltersAndOrders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, press.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	published, err := svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPage, Title: "Published", Publish: true, PublishedAt: &past,
	})
	require.NoError(t, err)
	scheduled, err := svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPage, Title: "Scheduled", Publish: true, PublishedAt: &future,
	})
	require.NoError(t, err)
	draft, err := svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPage, Title: "Draft",
	})
	require.NoError(t, err)
	hidden, err := svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPage, Title: "Hidden", Publish: true, PublishedAt: &past,
	})
	require.NoError(t, err)

	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: published.ID, Enabled: true})
	require.NoError(t, err)
	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: scheduled.ID, Enabled: true})
	require.NoError(t, err)
	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: draft.ID, Enabled: true})
	require.NoError(t, err)
	_, err = svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: hidden.ID, Enabled: false})
	require.NoError(t, err)

	entries, err := svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Published", entries[0].Name)
	assert.Equal(t, "/pages/published", entries[0].Path)
}

func TestActiveMenuCacheInvalidatedByWrites(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := createPublishedPage(t, svc, "About")
	itemA, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: a.ID, Enabled: true})
	require.NoError(t, err)

	entries, err := svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Adding an item must not serve the stale snapshot.
	b := createPublishedPage(t, svc, "Contact")
	itemB, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: b.ID, Enabled: true})
	require.NoError(t, err)

	entries, err = svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Neither must a reorder.
	require.NoError(t, svc.ReorderMenu(ctx, map[uuid.UUID]int{itemA.ID: 2, itemB.ID: 1}))
	entries, err = svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Contact", entries[0].Name)
	assert.Equal(t, "About", entries[1].Name)

	// And removal drops the entry immediately.
	require.NoError(t, svc.RemoveMenuItem(ctx, itemB.ID))
	entries, err = svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "About", entries[0].Name)
}

func TestSetMenuItemEnabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	page := createPublishedPage(t, svc, "About")
	item, err := svc.AddMenuItem(ctx, press.AddMenuItemRequest{PageID: page.ID, Enabled: true})
	require.NoError(t, err)

	entries, err := svc.ActiveMenu(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = svc.SetMenuItemEnabled(ctx, item.ID, false)
	require.NoError(t, err)

	entries, err = svc.ActiveMenu(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
