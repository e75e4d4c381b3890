package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gutterpress/gutterpress/pkg/press"
)

// Backend is an in-memory implementation of the press.BlobStore interface,
// intended for tests and development.
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
	}
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	if _, exists := b.mimeTypes[objectKey]; !exists {
		b.mimeTypes[objectKey] = "application/octet-stream"
	}
	return nil
}

// UploadWithParams uploads content with an explicit MIME type
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params press.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = data
	b.mimeTypes[params.ObjectKey] = params.MimeType
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return errors.New("object not found")
	}
	delete(b.objects, objectKey)
	delete(b.mimeTypes, objectKey)
	return nil
}

// GetDownloadURL returns a URL for downloading content.
// In-memory implementation doesn't use URLs.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	return "", errors.New("direct download required for memory backend")
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*press.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return &press.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(data)),
		ContentType: b.mimeTypes[objectKey],
	}, nil
}
