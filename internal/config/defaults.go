package config

const (
	defaultDataDir               = "~/.local/share/scribe/data"
	defaultMediaDir              = "~/.local/share/scribe/media"
	defaultLogDir                = "~/.local/share/scribe/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultEngineBinary          = "whisper-cli"
	defaultFFprobeBinary         = "ffprobe"
	defaultEngineLanguage        = "auto"
	defaultEngineThreads         = 4
	defaultQueuePollInterval     = 2
	defaultLeaseStalenessSeconds = 30
	defaultLeaseHeartbeatSeconds = 10
	defaultCancelWaitMS          = 1500
	defaultStopWaitMS            = 500
	defaultLogFormat             = ""
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Engine: Engine{
			Binary:        defaultEngineBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Language:      defaultEngineLanguage,
			Threads:       defaultEngineThreads,
		},
		Workflow: Workflow{
			QueuePollInterval:     defaultQueuePollInterval,
			LeaseStalenessSeconds: defaultLeaseStalenessSeconds,
			LeaseHeartbeatSeconds: defaultLeaseHeartbeatSeconds,
			CancelWaitMS:          defaultCancelWaitMS,
			StopWaitMS:            defaultStopWaitMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
