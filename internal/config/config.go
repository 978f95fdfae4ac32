package config

import (
	"fmt"

	"github.com/aligator/flatfat"
	"github.com/kelseyhightower/envconfig"
)

// Prefix of all environment variables, e.g. FLATFAT_VOLUME_SIZE_MB.
const Prefix = "FLATFAT"

// Config holds the defaults of the command line tool.
type Config struct {
	Volume  VolumeConfig
	Logging LogConfig
}

// VolumeConfig holds the geometry used when formatting a new volume.
type VolumeConfig struct {
	Path          string `envconfig:"VOLUME" default:""`
	SizeMB        uint32 `envconfig:"VOLUME_SIZE_MB" default:"10"`
	ClusterSizeKB uint32 `envconfig:"CLUSTER_SIZE_KB" default:"8"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"warn"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Volume: VolumeConfig{
			SizeMB:        10,
			ClusterSizeKB: 8,
		},
		Logging: LogConfig{
			Level: "warn",
		},
	}
}

// TotalSize returns the volume size in bytes.
func (v VolumeConfig) TotalSize() uint32 {
	return v.SizeMB * flatfat.MiB
}

// ClusterSize returns the cluster size in bytes.
func (v VolumeConfig) ClusterSize() uint32 {
	return v.ClusterSizeKB * flatfat.KiB
}

// Validate checks the geometry against the limits of the volume format.
func (c *Config) Validate() error {
	if c.Volume.SizeMB > flatfat.MaxVolumeSize/flatfat.MiB || c.Volume.TotalSize() < flatfat.MinVolumeSize {
		return fmt.Errorf("volume size of %d MiB outside of [%d, %d]",
			c.Volume.SizeMB, flatfat.MinVolumeSize/flatfat.MiB, flatfat.MaxVolumeSize/flatfat.MiB)
	}
	if c.Volume.ClusterSizeKB > flatfat.MaxClusterSize/flatfat.KiB || c.Volume.ClusterSize() < flatfat.MinClusterSize {
		return fmt.Errorf("cluster size of %d KiB outside of [%d, %d]",
			c.Volume.ClusterSizeKB, flatfat.MinClusterSize/flatfat.KiB, flatfat.MaxClusterSize/flatfat.KiB)
	}
	return nil
}
