package config

const (
	defaultDataDir               = "~/.local/share/stepwise"
	defaultLogDir                = "~/.local/share/stepwise/logs"
	defaultProxyURL              = "http://127.0.0.1:3000"
	defaultAPIBaseURL            = "https://generativelanguage.googleapis.com"
	defaultModel                 = "gemini-2.0-flash"
	defaultMinDelayMillis        = 2000
	defaultTimeoutSeconds        = 20
	defaultRetryAttempts         = 3
	defaultRetryBaseDelayMS      = 2000
	defaultRetryMaxDelayMS       = 16000
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultMaxWidth              = 640
	defaultJPEGQuality           = 70
	defaultSeekTimeoutMillis     = 2000
	defaultSeekOffsetSeconds     = 0.5
	defaultSeekToleranceSeconds  = 0.1
	defaultPersistDebounceMillis = 500
	defaultMaxPayloadMB          = 64
	defaultScoutHistoryLimit     = 20
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		AI: AI{
			ProxyURL:         defaultProxyURL,
			APIBaseURL:       defaultAPIBaseURL,
			Model:            defaultModel,
			MinDelayMillis:   defaultMinDelayMillis,
			TimeoutSeconds:   defaultTimeoutSeconds,
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Frames: Frames{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			MaxWidth:             defaultMaxWidth,
			JPEGQuality:          defaultJPEGQuality,
			SeekTimeoutMillis:    defaultSeekTimeoutMillis,
			SeekOffsetSeconds:    defaultSeekOffsetSeconds,
			SeekToleranceSeconds: defaultSeekToleranceSeconds,
		},
		Store: Store{
			PersistDebounceMillis: defaultPersistDebounceMillis,
			MaxPayloadMB:          defaultMaxPayloadMB,
			ScoutHistoryLimit:     defaultScoutHistoryLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
