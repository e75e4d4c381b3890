package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// envSpec is the flat environment surface read by WithEnv.
type envSpec struct {
	Port        string `env:"PORT" env-default:""`
	Environment string `env:"ENVIRONMENT" env-default:""`

	// DATABASE_URL selects the repository: empty or "memory" for in-memory,
	// postgresql:// for Postgres.
	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	// STORAGE_URL selects the blob store:
	//   memory://                  in-memory (default)
	//   file:///path/to/data       filesystem
	//   s3://bucket?region=...     S3 or any S3-compatible endpoint
	//   minio://host:port/bucket   MinIO native client
	StorageURL string `env:"STORAGE_URL" env-default:""`

	StorageAccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID" env-default:""`
	StorageSecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY" env-default:""`

	QueueCapacity     int `env:"QUEUE_CAPACITY" env-default:"0"`
	WorkerConcurrency int `env:"WORKER_CONCURRENCY" env-default:"0"`
	WorkerMaxAttempts int `env:"WORKER_MAX_ATTEMPTS" env-default:"0"`

	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

// WithEnv applies environment variable overrides on top of the defaults.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envSpec
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.QueueCapacity > 0 {
			c.QueueCapacity = env.QueueCapacity
		}
		if env.WorkerConcurrency > 0 {
			c.WorkerConcurrency = env.WorkerConcurrency
		}
		if env.WorkerMaxAttempts > 0 {
			c.WorkerMaxAttempts = env.WorkerMaxAttempts
		}
		if env.JWTSecret != "" {
			c.JWTSecret = env.JWTSecret
		}

		if err := applyDatabaseEnv(env, c); err != nil {
			return err
		}
		return applyStorageEnv(env, c)
	}
}

func applyDatabaseEnv(env envSpec, c *ServerConfig) error {
	dbURL := env.DatabaseURL
	if dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}
	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

func applyStorageEnv(env envSpec, c *ServerConfig) error {
	storageURL := env.StorageURL
	if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.DefaultStorageBackend = "memory"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "memory", Type: "memory", Config: map[string]interface{}{},
		})
		return nil
	}

	switch {
	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.DefaultStorageBackend = "fs"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "fs", Type: "fs",
			Config: map[string]interface{}{"base_dir": path},
		})
		return nil

	case strings.HasPrefix(storageURL, "s3://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid s3 STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("s3 bucket cannot be empty in STORAGE_URL")
		}
		cfg := map[string]interface{}{
			"bucket":            u.Host,
			"access_key_id":     env.StorageAccessKeyID,
			"secret_access_key": env.StorageSecretAccessKey,
		}
		q := u.Query()
		if region := q.Get("region"); region != "" {
			cfg["region"] = region
		}
		if endpoint := q.Get("endpoint"); endpoint != "" {
			cfg["endpoint"] = endpoint
			cfg["use_path_style"] = true
		}
		c.DefaultStorageBackend = "s3"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "s3", Type: "s3", Config: cfg,
		})
		return nil

	case strings.HasPrefix(storageURL, "minio://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid minio STORAGE_URL: %w", err)
		}
		bucket := strings.Trim(u.Path, "/")
		if u.Host == "" || bucket == "" {
			return fmt.Errorf("minio STORAGE_URL must be minio://host:port/bucket")
		}
		c.DefaultStorageBackend = "minio"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "minio", Type: "minio",
			Config: map[string]interface{}{
				"endpoint":                   u.Host,
				"bucket":                     bucket,
				"access_key_id":              env.StorageAccessKeyID,
				"secret_access_key":          env.StorageSecretAccessKey,
				"use_ssl":                    u.Query().Get("use_ssl") == "true",
				"create_bucket_if_not_exist": u.Query().Get("create_bucket") == "true",
			},
		})
		return nil
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...', or 'minio://...')", storageURL)
}

// upsertStorageBackend replaces a backend with the same name or appends it.
func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	for i, b := range backends {
		if b.Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
