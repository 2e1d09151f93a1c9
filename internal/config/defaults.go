package config

const (
	defaultWorkDir              = "~/.local/share/thumbpress/work"
	defaultDatabasePath         = "~/.local/share/thumbpress/database.json"
	defaultHistoryDBPath        = "~/.local/share/thumbpress/history.db"
	defaultLogDir               = "~/.local/share/thumbpress/logs"
	defaultHealthBind           = "127.0.0.1:10000"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultMaxConcurrent        = 2
	defaultTranscodeTimeout     = 900
	defaultThumbnailMaxWidth    = 1280
	defaultThumbnailMaxHeight   = 720
	defaultThumbnailJPEGQuality = 95
	defaultReencodePreset       = "fast"
	defaultReencodeCRF          = 18
	defaultBackupLinkTTLHours   = 168
	defaultCleanupInterval      = 60
	defaultMaxArtifactAge       = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultSupportContact       = "support"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:       defaultWorkDir,
			DatabasePath:  defaultDatabasePath,
			HistoryDBPath: defaultHistoryDBPath,
			LogDir:        defaultLogDir,
			HealthBind:    defaultHealthBind,
		},
		Owner: Owner{
			SupportContact: defaultSupportContact,
		},
		Processing: Processing{
			FFmpegBinary:            defaultFFmpegBinary,
			FFprobeBinary:           defaultFFprobeBinary,
			MaxConcurrentTranscodes: defaultMaxConcurrent,
			TranscodeTimeout:        defaultTranscodeTimeout,
			ThumbnailMaxWidth:       defaultThumbnailMaxWidth,
			ThumbnailMaxHeight:      defaultThumbnailMaxHeight,
			ThumbnailJPEGQuality:    defaultThumbnailJPEGQuality,
			ReencodePreset:          defaultReencodePreset,
			ReencodeCRF:             defaultReencodeCRF,
		},
		Backup: Backup{
			LinkTTLHours: defaultBackupLinkTTLHours,
		},
		Cleanup: Cleanup{
			IntervalMinutes:   defaultCleanupInterval,
			MaxArtifactAgeMin: defaultMaxArtifactAge,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
