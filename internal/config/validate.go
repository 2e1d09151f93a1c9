package config

import (
	"errors"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.DatabasePath == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.MaxConcurrentTranscodes < 1 {
		return errors.New("processing.max_concurrent_transcodes must be at least 1")
	}
	if c.Processing.TranscodeTimeout < 0 {
		return errors.New("processing.transcode_timeout must not be negative")
	}
	if c.Processing.ThumbnailMaxWidth < 1 || c.Processing.ThumbnailMaxHeight < 1 {
		return errors.New("processing.thumbnail_max_width and thumbnail_max_height must be positive")
	}
	if c.Processing.ThumbnailJPEGQuality < 1 || c.Processing.ThumbnailJPEGQuality > 100 {
		return errors.New("processing.thumbnail_jpeg_quality must be between 1 and 100")
	}
	if c.Processing.ReencodeCRF < 0 || c.Processing.ReencodeCRF > 51 {
		return errors.New("processing.reencode_crf must be between 0 and 51")
	}
	if strings.TrimSpace(c.Processing.ReencodePreset) == "" {
		return errors.New("processing.reencode_preset must be set")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if !c.Backup.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Backup.Bucket) == "" {
		return errors.New("backup.bucket must be set when backup.enabled is true")
	}
	if strings.TrimSpace(c.Backup.Region) == "" {
		return errors.New("backup.region must be set when backup.enabled is true")
	}
	if c.Backup.LinkTTLHours < 1 {
		return errors.New("backup.link_ttl_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.IntervalMinutes < 1 {
		return errors.New("cleanup.interval_minutes must be at least 1")
	}
	if c.Cleanup.MaxArtifactAgeMin < 1 {
		return errors.New("cleanup.max_artifact_age_minutes must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return errors.New("logging.format must be console or json")
	}
	return nil
}
