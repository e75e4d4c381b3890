package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gutterpress/gutterpress/pkg/press"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // MinIO server endpoint (host:port)
	Bucket          string // Bucket name
	AccessKeyID     string // Access key
	SecretAccessKey string // Secret key
	UseSSL          bool   // Use TLS for connections
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is a MinIO implementation of the press.BlobStore interface, using
// the native MinIO client rather than the S3 compatibility layer.
type Backend struct {
	client          *minio.Client
	bucket          string
	presignDuration time.Duration
}

// New creates a new MinIO storage backend
func New(config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	backend := &Backend{
		client:          client,
		bucket:          config.Bucket,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
	}

	if config.CreateBucketIfNotExist {
		ctx := context.Background()
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return backend, nil
}

// Upload uploads content directly to MinIO
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectKey, reader, -1, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

// UploadWithParams uploads content with an explicit MIME type
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params press.UploadParams) error {
	_, err := b.client.PutObject(ctx, b.bucket, params.ObjectKey, reader, -1, minio.PutObjectOptions{
		ContentType: params.MimeType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

// Download downloads content directly from MinIO
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download from MinIO: %w", err)
	}
	// GetObject is lazy; surface missing objects here rather than on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.New("object not found")
		}
		return nil, fmt.Errorf("failed to stat MinIO object: %w", err)
	}
	return obj, nil
}

// Delete deletes content from MinIO
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	err := b.client.RemoveObject(ctx, b.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// GetDownloadURL returns a presigned URL for downloading content
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	reqParams := make(url.Values)
	if downloadFilename != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=\"%s\"", downloadFilename))
	}

	u, err := b.client.PresignedGetObject(ctx, b.bucket, objectKey, b.presignDuration, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return u.String(), nil
}

// GetObjectMeta retrieves metadata for an object in MinIO
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*press.ObjectMeta, error) {
	info, err := b.client.StatObject(ctx, b.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.New("object not found")
		}
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}

	return &press.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size,
		ContentType: info.ContentType,
		UpdatedAt:   info.LastModified,
		ETag:        info.ETag,
		Metadata:    info.UserMetadata,
	}, nil
}
