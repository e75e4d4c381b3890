package press_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gutterpress/gutterpress/pkg/press"
	"github.com/gutterpress/gutterpress/pkg/press/cache"
	"github.com/gutterpress/gutterpress/pkg/press/repo/memory"
	memorystorage "github.com/gutterpress/gutterpress/pkg/press/storage/memory"
)

// captureQueue records enqueued jobs instead of executing them.
type captureQueue struct {
	mu   sync.Mutex
	jobs []press.Job
}

func (q *captureQueue) Enqueue(ctx context.Context, job press.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type deriveFixture struct {
	svc   press.Service
	queue *captureQueue
	clock *time.Time
}

func newDeriveFixture(t *testing.T) *deriveFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	nowFn := func() time.Time { return *clock }

	q := &captureQueue{}
	svc, err := press.New(
		press.WithRepository(memory.New()),
		press.WithBlobStore("memory", memorystorage.New()),
		press.WithCache(cache.NewMemoryWithClock(nowFn)),
		press.WithQueue(q),
		press.WithClock(nowFn),
	)
	require.NoError(t, err)
	return &deriveFixture{svc: svc, queue: q, clock: clock}
}

func (f *deriveFixture) createWithCover(t *testing.T) *press.Postable {
	t.Helper()
	ctx := context.Background()

	p, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "With Cover",
	})
	require.NoError(t, err)

	p, err = f.svc.AttachCoverImage(ctx, press.AttachCoverImageRequest{
		PostableID: p.ID,
		FileName:   "cover.png",
		MimeType:   "image/png",
		Reader:     bytes.NewReader(pngBytes(t, 800, 600)),
	})
	require.NoError(t, err)
	require.True(t, p.HasCoverImage())
	return p
}

func TestAttachCoverImageRejectsBadMimeType(t *testing.T) {
	f := newDeriveFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "No Cover",
	})
	require.NoError(t, err)

	_, err = f.svc.AttachCoverImage(ctx, press.AttachCoverImageRequest{
		PostableID: p.ID,
		FileName:   "doc.pdf",
		MimeType:   "application/pdf",
		Reader:     bytes.NewReader([]byte("%PDF")),
	})
	assert.True(t, press.IsValidation(err))
}

func TestAttachCoverImageRejectsOversizedUpload(t *testing.T) {
	f := newDeriveFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "Big Cover",
	})
	require.NoError(t, err)

	_, err = f.svc.AttachCoverImage(ctx, press.AttachCoverImageRequest{
		PostableID: p.ID,
		FileName:   "big.jpg",
		MimeType:   "image/jpeg",
		Reader:     bytes.NewReader(make([]byte, press.MaxCoverImageBytes+1)),
	})
	assert.True(t, press.IsValidation(err))
}

func TestAttachCoverImageDispatchesGeneration(t *testing.T) {
	f := newDeriveFixture(t)
	f.createWithCover(t)

	assert.Equal(t, 1, f.queue.count())
	assert.Equal(t, press.JobTypeGenerateDerivatives, f.queue.jobs[0].Type)
}

func TestEnqueueDerivativesDedupesWithinLockWindow(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()
	require.Equal(t, 1, f.queue.count())

	// Burst of requests inside the lock TTL schedules nothing new.
	for i := 0; i < 10; i++ {
		enqueued, err := f.svc.EnqueueDerivatives(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, enqueued)
	}
	assert.Equal(t, 1, f.queue.count())
}

func TestEnqueueDerivativesRedispatchesAfterLockExpiry(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()
	require.Equal(t, 1, f.queue.count())

	*f.clock = f.clock.Add(press.DispatchLockTTL + time.Minute)

	enqueued, err := f.svc.EnqueueDerivatives(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, enqueued)
	assert.Equal(t, 2, f.queue.count())
}

func TestEnqueueDerivativesWithoutCover(t *testing.T) {
	f := newDeriveFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "Plain",
	})
	require.NoError(t, err)

	_, err = f.svc.EnqueueDerivatives(ctx, p.ID)
	assert.ErrorIs(t, err, press.ErrNoCoverImage)
}

func TestProcessDerivativesGeneratesAllVariants(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessDerivatives(ctx, p.ID))

	thumb, err := f.svc.VariantReference(ctx, p.ID, press.VariantThumbnail)
	require.NoError(t, err)
	assert.Equal(t, 300, thumb.Width)
	assert.Equal(t, 200, thumb.Height)
	assert.NotEmpty(t, thumb.Key)

	// 800x600 source fits inside 1920x1080 untouched.
	hero, err := f.svc.VariantReference(ctx, p.ID, press.VariantHero)
	require.NoError(t, err)
	assert.Equal(t, 800, hero.Width)
	assert.Equal(t, 600, hero.Height)
}

func TestProcessDerivativesIsIdempotent(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessDerivatives(ctx, p.ID))
	first, err := f.svc.VariantReference(ctx, p.ID, press.VariantThumbnail)
	require.NoError(t, err)

	// Running the job again changes nothing.
	require.NoError(t, f.svc.ProcessDerivatives(ctx, p.ID))
	second, err := f.svc.VariantReference(ctx, p.ID, press.VariantThumbnail)
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestProcessDerivativesForDeletedPostableIsNoop(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeletePostable(ctx, p.ID))
	assert.NoError(t, f.svc.ProcessDerivatives(ctx, p.ID))
}

func TestVariantReferenceNotReadyDispatches(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()
	require.Equal(t, 1, f.queue.count())

	// Pretend the attach-time dispatch was lost.
	*f.clock = f.clock.Add(press.DispatchLockTTL + time.Minute)

	_, err := f.svc.VariantReference(ctx, p.ID, press.VariantThumbnail)
	assert.ErrorIs(t, err, press.ErrVariantNotReady)
	assert.Equal(t, 2, f.queue.count())
}

func TestVariantReferenceUnknownVariant(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)

	_, err := f.svc.VariantReference(context.Background(), p.ID, "banner")
	assert.ErrorIs(t, err, press.ErrUnknownVariant)
}

func TestDownloadVariantRoundTrip(t *testing.T) {
	f := newDeriveFixture(t)
	p := f.createWithCover(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessDerivatives(ctx, p.ID))

	rc, err := f.svc.DownloadVariant(ctx, p.ID, press.VariantThumbnail)
	require.NoError(t, err)
	defer rc.Close()

	img, format, err := image.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestSharedCoverSharesVariants(t *testing.T) {
	f := newDeriveFixture(t)
	ctx := context.Background()

	data := pngBytes(t, 800, 600)

	first, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "First",
	})
	require.NoError(t, err)
	first, err = f.svc.AttachCoverImage(ctx, press.AttachCoverImageRequest{
		PostableID: first.ID, FileName: "cover.png", MimeType: "image/png",
		Reader: bytes.NewReader(data),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessDerivatives(ctx, first.ID))

	// Identical bytes land on the same original key, so the second record's
	// derivatives are already ready.
	second, err := f.svc.CreatePostable(ctx, press.CreatePostableRequest{
		Kind: press.PostableKindPost, Title: "Second",
	})
	require.NoError(t, err)
	second, err = f.svc.AttachCoverImage(ctx, press.AttachCoverImageRequest{
		PostableID: second.ID, FileName: "cover.png", MimeType: "image/png",
		Reader: bytes.NewReader(data),
	})
	require.NoError(t, err)
	assert.Equal(t, first.CoverImage.Key, second.CoverImage.Key)

	v, err := f.svc.VariantReference(ctx, second.ID, press.VariantThumbnail)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Key)
}
