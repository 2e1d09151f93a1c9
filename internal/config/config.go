package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir       string `toml:"work_dir"`
	DatabasePath  string `toml:"database_path"`
	HistoryDBPath string `toml:"history_db_path"`
	LogDir        string `toml:"log_dir"`
	HealthBind    string `toml:"health_bind"`
}

// Owner identifies the single privileged administrator account.
type Owner struct {
	UserID         int64  `toml:"user_id"`
	SupportContact string `toml:"support_contact"`
}

// Processing contains transcoder invocation and image normalization settings.
type Processing struct {
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FFprobeBinary           string `toml:"ffprobe_binary"`
	MaxConcurrentTranscodes int    `toml:"max_concurrent_transcodes"`
	TranscodeTimeout        int    `toml:"transcode_timeout"`
	ThumbnailMaxWidth       int    `toml:"thumbnail_max_width"`
	ThumbnailMaxHeight      int    `toml:"thumbnail_max_height"`
	ThumbnailJPEGQuality    int    `toml:"thumbnail_jpeg_quality"`
	ReencodePreset          string `toml:"reencode_preset"`
	ReencodeCRF             int    `toml:"reencode_crf"`
}

// Backup contains configuration for the optional S3 backup of processed videos.
type Backup struct {
	Enabled         bool   `toml:"enabled"`
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	LinkTTLHours    int    `toml:"link_ttl_hours"`
}

// Cleanup contains configuration for stale artifact removal.
type Cleanup struct {
	IntervalMinutes   int `toml:"interval_minutes"`
	MaxArtifactAgeMin int `toml:"max_artifact_age_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for thumbpress.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Owner      Owner      `toml:"owner"`
	Processing Processing `toml:"processing"`
	Backup     Backup     `toml:"backup"`
	Cleanup    Cleanup    `toml:"cleanup"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/thumbpress/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. The second return value is the resolved
// path; the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the work, downloads, outputs, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.DownloadsDir(), c.OutputsDir(), c.Paths.LogDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DownloadsDir returns the directory holding inbound artifacts (thumbnails
// and source videos).
func (c *Config) DownloadsDir() string {
	if c.Paths.WorkDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.WorkDir, "downloads")
}

// OutputsDir returns the directory holding processed video artifacts.
func (c *Config) OutputsDir() string {
	if c.Paths.WorkDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.WorkDir, "outputs")
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.WorkDir,
		&c.Paths.DatabasePath,
		&c.Paths.HistoryDBPath,
		&c.Paths.LogDir,
	}
	for _, field := range pathFields {
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Processing.FFmpegBinary = strings.TrimSpace(c.Processing.FFmpegBinary)
	if c.Processing.FFmpegBinary == "" {
		c.Processing.FFmpegBinary = defaultFFmpegBinary
	}
	c.Processing.FFprobeBinary = strings.TrimSpace(c.Processing.FFprobeBinary)
	if c.Processing.FFprobeBinary == "" {
		c.Processing.FFprobeBinary = defaultFFprobeBinary
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Backup.Prefix = strings.Trim(strings.TrimSpace(c.Backup.Prefix), "/")
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// ExpandPath resolves a leading ~ to the current user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
