package press

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/gutterpress/gutterpress/pkg/press/imaging"
)

// Cover image operations

func (s *service) AttachCoverImage(ctx context.Context, req AttachCoverImageRequest) (*Postable, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !ValidCoverImageType(req.MimeType) {
		return nil, &ValidationError{Field: "cover_image", Reason: "must be a JPEG, PNG, or WebP image"}
	}

	p, err := s.repository.GetPostable(ctx, req.PostableID)
	if err != nil {
		return nil, err
	}

	// Read one byte past the limit so oversized uploads are detected without
	// buffering the whole stream.
	data, err := io.ReadAll(io.LimitReader(req.Reader, MaxCoverImageBytes+1))
	if err != nil {
		return nil, &PostableError{PostableID: p.ID, Op: "attach_cover", Err: err}
	}
	if len(data) > MaxCoverImageBytes {
		return nil, &ValidationError{Field: "cover_image", Reason: "must be smaller than 10MB"}
	}

	backend, err := s.backend(s.defaultBackend)
	if err != nil {
		return nil, err
	}

	key := originalObjectKey(sha256.Sum256(data), req.FileName)
	err = backend.UploadWithParams(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: key,
		MimeType:  req.MimeType,
	})
	if err != nil {
		return nil, &StorageError{Backend: s.defaultBackend, Key: key, Op: "upload", Err: err}
	}

	p.CoverImage = &CoverImage{
		Key:      key,
		FileName: req.FileName,
		MimeType: req.MimeType,
		ByteSize: int64(len(data)),
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repository.UpdatePostable(ctx, p); err != nil {
		return nil, &PostableError{PostableID: p.ID, Op: "attach_cover", Err: err}
	}

	s.logger.Info().
		Str("postable_id", p.ID.String()).
		Str("object_key", key).
		Int("byte_size", len(data)).
		Msg("cover image attached")

	// Derivative generation is best-effort here; the read path re-dispatches
	// on demand if this enqueue is lost.
	if _, err := s.EnqueueDerivatives(ctx, p.ID); err != nil {
		s.logger.Warn().Err(err).
			Str("postable_id", p.ID.String()).
			Msg("failed to enqueue derivative generation")
	}

	return p, nil
}

func (s *service) RemoveCoverImage(ctx context.Context, id uuid.UUID) (*Postable, error) {
	p, err := s.repository.GetPostable(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.HasCoverImage() {
		return p, nil
	}

	// The original and its derivatives stay in storage: originals are
	// content-addressed and may be shared by other records, and orphaned
	// derivative rows are harmless.
	p.CoverImage = nil
	p.UpdatedAt = s.now().UTC()
	if err := s.repository.UpdatePostable(ctx, p); err != nil {
		return nil, &PostableError{PostableID: id, Op: "remove_cover", Err: err}
	}
	return p, nil
}

func (s *service) CoverImageURL(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.repository.GetPostable(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.HasCoverImage() {
		return "", ErrNoCoverImage
	}

	backend, err := s.backend(s.defaultBackend)
	if err != nil {
		return "", err
	}
	return backend.GetDownloadURL(ctx, p.CoverImage.Key, p.CoverImage.FileName)
}

// Derivative coordination

// EnqueueDerivatives schedules derivative generation for the postable's cover
// image. It reports whether a job was actually scheduled: a false return with
// nil error means the dispatch was suppressed by the in-flight lock or no
// queue is configured.
func (s *service) EnqueueDerivatives(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.repository.GetPostable(ctx, id)
	if err != nil {
		return false, err
	}
	if !p.HasCoverImage() {
		return false, ErrNoCoverImage
	}

	if s.queue == nil {
		s.logger.Warn().
			Str("postable_id", id.String()).
			Msg("no queue configured, skipping derivative dispatch")
		return false, nil
	}

	// Set-if-absent dispatch lock. The TTL bounds the duplicate-suppression
	// window; the job itself is idempotent, so an expired lock leading to a
	// duplicate job is wasted work, not corruption.
	if !s.cache.Add(dispatchLockKey(p.CoverImage.Key), true, DispatchLockTTL) {
		derivativeDispatches.WithLabelValues("deduped").Inc()
		return false, nil
	}

	job := Job{
		ID:         uuid.New(),
		Type:       JobTypeGenerateDerivatives,
		PostableID: id,
		EnqueuedAt: s.now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// Release the lock so the next request can retry the dispatch.
		s.cache.Delete(dispatchLockKey(p.CoverImage.Key))
		return false, &PostableError{PostableID: id, Op: "enqueue_derivatives", Err: err}
	}

	derivativeDispatches.WithLabelValues("enqueued").Inc()
	s.logger.Info().
		Str("postable_id", id.String()).
		Str("job_id", job.ID.String()).
		Str("source_key", p.CoverImage.Key).
		Msg("derivative generation enqueued")
	return true, nil
}

// ProcessDerivatives generates every configured derivative for the postable's
// cover image. It is the body of the background job and is idempotent:
// variants that already exist are skipped, and a partial failure can be
// retried without redoing completed work.
func (s *service) ProcessDerivatives(ctx context.Context, id uuid.UUID) error {
	p, err := s.repository.GetPostable(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPostableNotFound) {
			// Deleted between enqueue and execution; nothing to do.
			return nil
		}
		return err
	}
	if !p.HasCoverImage() {
		return nil
	}

	backend, err := s.backend(s.defaultBackend)
	if err != nil {
		return err
	}

	sourceKey := p.CoverImage.Key
	for _, spec := range s.variantSpecs {
		if _, err := s.repository.GetDerivedVariant(ctx, sourceKey, spec.Digest()); err == nil {
			continue
		} else if !errors.Is(err, ErrVariantNotReady) {
			derivativeJobs.WithLabelValues("failed").Inc()
			return &PostableError{PostableID: id, Op: "process_derivatives", Err: err}
		}

		if err := s.generateVariant(ctx, backend, sourceKey, spec); err != nil {
			derivativeJobs.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).
				Str("postable_id", id.String()).
				Str("variant", spec.Name).
				Str("source_key", sourceKey).
				Msg("derivative generation failed")
			return &PostableError{PostableID: id, Op: "process_derivatives", Err: err}
		}

		s.logger.Info().
			Str("postable_id", id.String()).
			Str("variant", spec.Name).
			Str("source_key", sourceKey).
			Msg("derivative generated")
	}

	derivativeJobs.WithLabelValues("processed").Inc()
	return nil
}

func (s *service) generateVariant(ctx context.Context, backend BlobStore, sourceKey string, spec VariantSpec) error {
	src, err := backend.Download(ctx, sourceKey)
	if err != nil {
		return &StorageError{Backend: s.defaultBackend, Key: sourceKey, Op: "download", Err: err}
	}
	defer src.Close()

	result, err := imaging.Transform(src, spec.Mode, spec.Width, spec.Height)
	if err != nil {
		return err
	}

	key := variantObjectKey(sourceKey, spec)
	err = backend.UploadWithParams(ctx, bytes.NewReader(result.Data), UploadParams{
		ObjectKey: key,
		MimeType:  "image/jpeg",
	})
	if err != nil {
		return &StorageError{Backend: s.defaultBackend, Key: key, Op: "upload", Err: err}
	}

	v := &DerivedVariant{
		SourceKey: sourceKey,
		Digest:    spec.Digest(),
		Variant:   spec.Name,
		Key:       key,
		Width:     result.Width,
		Height:    result.Height,
		ByteSize:  int64(len(result.Data)),
		CreatedAt: s.now().UTC(),
	}
	// The record is created only after the bytes are durably stored, so its
	// existence always implies a usable derivative. A concurrent job may have
	// won the insert; that is the same outcome.
	if err := s.repository.CreateDerivedVariant(ctx, v); err != nil && !errors.Is(err, ErrVariantExists) {
		return err
	}
	return nil
}

// VariantReference returns the derived variant record for the named variant
// of the postable's cover image. When the derivative has not been generated
// yet it dispatches a generation job and returns ErrVariantNotReady; callers
// render without the derivative rather than referencing a missing asset.
func (s *service) VariantReference(ctx context.Context, id uuid.UUID, variant string) (*DerivedVariant, error) {
	p, err := s.repository.GetPostable(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.HasCoverImage() {
		return nil, ErrNoCoverImage
	}

	spec, ok := s.variantSpec(variant)
	if !ok {
		return nil, ErrUnknownVariant
	}

	v, err := s.repository.GetDerivedVariant(ctx, p.CoverImage.Key, spec.Digest())
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrVariantNotReady) {
		return nil, err
	}

	if _, err := s.EnqueueDerivatives(ctx, id); err != nil {
		s.logger.Warn().Err(err).
			Str("postable_id", id.String()).
			Str("variant", variant).
			Msg("failed to dispatch derivative generation from read path")
	}
	return nil, ErrVariantNotReady
}

func (s *service) VariantURL(ctx context.Context, id uuid.UUID, variant string) (string, error) {
	v, err := s.VariantReference(ctx, id, variant)
	if err != nil {
		return "", err
	}

	backend, err := s.backend(s.defaultBackend)
	if err != nil {
		return "", err
	}
	return backend.GetDownloadURL(ctx, v.Key, "")
}

func (s *service) DownloadVariant(ctx context.Context, id uuid.UUID, variant string) (io.ReadCloser, error) {
	v, err := s.VariantReference(ctx, id, variant)
	if err != nil {
		return nil, err
	}

	backend, err := s.backend(s.defaultBackend)
	if err != nil {
		return nil, err
	}
	rc, err := backend.Download(ctx, v.Key)
	if err != nil {
		return nil, &StorageError{Backend: s.defaultBackend, Key: v.Key, Op: "download", Err: err}
	}
	return rc, nil
}
