// Package config loads the service configuration from a TOML file. Secrets
// (the Postgres DSN, AWS credentials) stay in the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration document.
type Config struct {
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Storage   StorageConfig   `toml:"storage"`
	Webhooks  WebhookConfig   `toml:"webhooks"`
}

// LifecycleConfig tunes the retention sweepers and the purge engine.
type LifecycleConfig struct {
	// DocumentRetentionDays is how long a trashed document survives before
	// the sweeper hard-deletes it.
	DocumentRetentionDays int `toml:"document_retention_days"`

	// OrganizationPurgeDelayDays is the grace window between soft-deleting
	// an organization and its purge.
	OrganizationPurgeDelayDays int `toml:"organization_purge_delay_days"`

	// PurgeBatchSize is the document page size used by the purge engine.
	PurgeBatchSize int `toml:"purge_batch_size"`

	// StorageDeletesPerSecond rate-limits blob deletions during purge.
	// Zero disables the limiter.
	StorageDeletesPerSecond int `toml:"storage_deletes_per_second"`

	DocumentSweepSchedule     string `toml:"document_sweep_schedule"`
	OrganizationSweepSchedule string `toml:"organization_sweep_schedule"`

	// RunSweepsOnStart triggers both sweeps immediately at startup in
	// addition to their cron schedules.
	RunSweepsOnStart bool `toml:"run_sweeps_on_start"`
}

// Retention returns the document retention window as a duration.
func (l LifecycleConfig) Retention() time.Duration {
	return time.Duration(l.DocumentRetentionDays) * 24 * time.Hour
}

// PurgeDelay returns the organization purge grace window as a duration.
func (l LifecycleConfig) PurgeDelay() time.Duration {
	return time.Duration(l.OrganizationPurgeDelayDays) * 24 * time.Hour
}

// StorageConfig selects the blob storage backend. Tagged union: Type decides
// which of the remaining fields apply.
type StorageConfig struct {
	Type string `toml:"type"` // "s3" or "filesystem"

	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	FSRoot string `toml:"fs_root,omitempty"`
}

// WebhookConfig tunes outbound webhook delivery.
type WebhookConfig struct {
	Issuer         string `toml:"issuer"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the per-delivery HTTP timeout.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.Lifecycle.DocumentRetentionDays <= 0 {
		c.Lifecycle.DocumentRetentionDays = 30
	}
	if c.Lifecycle.OrganizationPurgeDelayDays <= 0 {
		c.Lifecycle.OrganizationPurgeDelayDays = 7
	}
	if c.Lifecycle.PurgeBatchSize <= 0 {
		c.Lifecycle.PurgeBatchSize = 100
	}
	if c.Lifecycle.DocumentSweepSchedule == "" {
		c.Lifecycle.DocumentSweepSchedule = "0 3 * * *"
	}
	if c.Lifecycle.OrganizationSweepSchedule == "" {
		c.Lifecycle.OrganizationSweepSchedule = "30 3 * * *"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "filesystem"
	}
	if c.Storage.Type == "filesystem" && c.Storage.FSRoot == "" {
		c.Storage.FSRoot = "data/blobs"
	}
	if c.Webhooks.Issuer == "" {
		c.Webhooks.Issuer = "paperbase"
	}
	if c.Webhooks.TimeoutSeconds <= 0 {
		c.Webhooks.TimeoutSeconds = 10
	}
}

// Read decodes a Config from the provided reader and fills defaults.
func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}
