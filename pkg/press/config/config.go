// Package config builds a press.Service from declarative configuration, with
// defaults suitable for development and environment overrides for deployment.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gutterpress/gutterpress/pkg/press"
	"github.com/gutterpress/gutterpress/pkg/press/cache"
	"github.com/gutterpress/gutterpress/pkg/press/queue"
	repomemory "github.com/gutterpress/gutterpress/pkg/press/repo/memory"
	repopg "github.com/gutterpress/gutterpress/pkg/press/repo/postgres"
	fsstorage "github.com/gutterpress/gutterpress/pkg/press/storage/fs"
	memorystorage "github.com/gutterpress/gutterpress/pkg/press/storage/memory"
	miniostorage "github.com/gutterpress/gutterpress/pkg/press/storage/minio"
	s3storage "github.com/gutterpress/gutterpress/pkg/press/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{Name: "memory", Type: "memory", Config: map[string]interface{}{}},
		},
		QueueCapacity:     256,
		WorkerConcurrency: 2,
		WorkerMaxAttempts: 3,
	}
}

// ServerConfig represents server configuration for the gutterpress service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig

	// Background job configuration
	QueueCapacity     int
	WorkerConcurrency int
	WorkerMaxAttempts int

	// JWTSecret signs and verifies management API tokens.
	JWTSecret string
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}

	return nil
}

// BuildService creates a Service and its queue from the server configuration.
// The returned queue is the one the service dispatches to; pass it to a
// worker pool via BuildWorker.
func (c *ServerConfig) BuildService(logger zerolog.Logger) (press.Service, *queue.Memory, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	q := queue.NewMemoryWithCapacity(c.QueueCapacity)
	options := []press.Option{
		press.WithRepository(repo),
		press.WithQueue(q),
		press.WithCache(cache.NewMemory()),
		press.WithLogger(logger),
		press.WithDefaultBackend(c.DefaultStorageBackend),
	}

	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, press.WithBlobStore(backendConfig.Name, store))
	}

	svc, err := press.New(options...)
	if err != nil {
		return nil, nil, err
	}
	return svc, q, nil
}

// BuildWorker creates the worker pool that executes derivative jobs from q.
func (c *ServerConfig) BuildWorker(svc press.Service, q *queue.Memory, logger zerolog.Logger) *queue.Worker {
	handler := func(ctx context.Context, job press.Job) error {
		switch job.Type {
		case press.JobTypeGenerateDerivatives:
			return svc.ProcessDerivatives(ctx, job.PostableID)
		default:
			return fmt.Errorf("unknown job type: %s", job.Type)
		}
	}
	return queue.NewWorker(q, handler,
		queue.WithConcurrency(c.WorkerConcurrency),
		queue.WithMaxAttempts(c.WorkerMaxAttempts),
		queue.WithLogger(logger),
	)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (press.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// PingPostgres verifies connectivity to Postgres before the server starts
// serving traffic.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (press.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		fsConfig := fsstorage.Config{
			BaseDir:   getString(config.Config, "base_dir", "./data/storage"),
			URLPrefix: getString(config.Config, "url_prefix", ""),
		}
		return fsstorage.New(fsConfig)

	case "s3":
		s3Config := s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			PresignDuration:        getInt(config.Config, "presign_duration", 3600),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		}
		return s3storage.New(s3Config)

	case "minio":
		minioConfig := miniostorage.Config{
			Endpoint:               getString(config.Config, "endpoint", "localhost:9000"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			UseSSL:                 getBool(config.Config, "use_ssl", false),
			PresignDuration:        getInt(config.Config, "presign_duration", 3600),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		}
		return miniostorage.New(minioConfig)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(m map[string]interface{}, key string, fallback bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return fallback
}

func getInt(m map[string]interface{}, key string, fallback int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}
