package config

const (
	defaultConfigPath    = "~/.config/framecut/config.toml"
	projectConfigName    = "framecut.toml"
	defaultStatsDir      = "~/.cache/framecut"
	defaultLogDir        = "~/.local/share/framecut/logs"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	defaultMinWidth          = 256
	defaultMinCutSpacing     = 15
	defaultProbeCacheMinutes = 5

	// StatsDBName is the stats database file inside paths.stats_dir.
	StatsDBName = "stats.db"

	// EnvLogLevel overrides logging.level.
	EnvLogLevel = "FRAMECUT_LOG_LEVEL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StatsDir: defaultStatsDir,
			LogDir:   defaultLogDir,
		},
		Detection: Detection{
			AutoDownscale:    true,
			MinWidth:         defaultMinWidth,
			MinCutSpacing:    defaultMinCutSpacing,
			AlwaysIncludeEnd: true,
			ShowProgress:     true,
		},
		Media: Media{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			ProbeCacheMinutes: defaultProbeCacheMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
