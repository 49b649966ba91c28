package config

const (
	defaultStorageDir = "~/.local/share/courier/storage"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultWorkerBinary            = "courierd"
	defaultAliveThreshold          = 10
	defaultAlreadyRunningThreshold = 25
	defaultTransferGhostThreshold  = 60
	defaultMultiTrackGhostTimeout  = 900
	defaultIdleRecheckMillis       = 500
	defaultItemPauseMillis         = 100

	defaultUserAgent          = "CourierDL/1.0"
	defaultReentryWindow      = 15
	defaultConnectTimeout     = 30
	defaultHeartbeatInterval  = 5
	defaultIntegrityThreshold = 50000

	defaultHistoryRetention = 100
	// MinHistoryRetention is the floor applied to history.retention_limit.
	MinHistoryRetention = 10

	defaultMultiTrackBinary   = "musicdownload"
	defaultMultiTrackOutput   = "{artist} - {album} - {song_name}.{ext}"
	defaultMultiTrackFormat   = "mp3"
	defaultMultiTrackQuality  = "very_high"
	defaultMultiTrackRetries  = 3
	defaultMultiTrackTimeout  = 3600
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
		},
		Worker: Worker{
			Binary:                  defaultWorkerBinary,
			AliveThreshold:          defaultAliveThreshold,
			AlreadyRunningThreshold: defaultAlreadyRunningThreshold,
			TransferGhostThreshold:  defaultTransferGhostThreshold,
			MultiTrackGhostTimeout:  defaultMultiTrackGhostTimeout,
			IdleRecheckMillis:       defaultIdleRecheckMillis,
			ItemPauseMillis:         defaultItemPauseMillis,
		},
		Transfer: Transfer{
			UserAgent:          defaultUserAgent,
			ReentryWindow:      defaultReentryWindow,
			ConnectTimeout:     defaultConnectTimeout,
			HeartbeatInterval:  defaultHeartbeatInterval,
			IntegrityThreshold: defaultIntegrityThreshold,
		},
		History: History{
			RetentionLimit: defaultHistoryRetention,
		},
		MultiTrack: MultiTrack{
			Binary:           defaultMultiTrackBinary,
			OutputTemplate:   defaultMultiTrackOutput,
			Format:           defaultMultiTrackFormat,
			Quality:          defaultMultiTrackQuality,
			Retries:          defaultMultiTrackRetries,
			TimeoutSeconds:   defaultMultiTrackTimeout,
			DownloadLyrics:   true,
			PrintDownloads:   true,
			SkipExisting:     false,
			PrintProgress:    false,
			PrintProgressLog: false,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
