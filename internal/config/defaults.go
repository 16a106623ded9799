package config

const (
	defaultStateDir                 = "~/.local/share/rinkcast/state"
	defaultLogDir                   = "~/.local/share/rinkcast/logs"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultCalendarLookbackMinutes  = 720
	defaultCalendarTimeoutSeconds   = 15
	defaultPlatformSearchPageSize   = 50
	defaultDuplicateLookbackMinutes = 30
	defaultScheduleGraceMinutes     = 2
	defaultPlatformTimeoutSeconds   = 20
	defaultCaptureBinary            = "obs"
	defaultStartTimeoutSeconds      = 45
	defaultStopTimeoutSeconds       = 30
	defaultPostLaunchGraceSeconds   = 5
	defaultControlPlaneAddress      = "127.0.0.1:4455"
	defaultControlPlaneTimeout      = 10
	defaultPollIntervalSeconds      = 60
	defaultLockStaleMinutes         = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Calendar: Calendar{
			LookbackMinutes: defaultCalendarLookbackMinutes,
			TimeoutSeconds:  defaultCalendarTimeoutSeconds,
		},
		Platform: Platform{
			SearchPageSize:           defaultPlatformSearchPageSize,
			DuplicateLookbackMinutes: defaultDuplicateLookbackMinutes,
			ScheduleGraceMinutes:     defaultScheduleGraceMinutes,
			TimeoutSeconds:           defaultPlatformTimeoutSeconds,
		},
		Capture: Capture{
			Binary:                 defaultCaptureBinary,
			StartTimeoutSeconds:    defaultStartTimeoutSeconds,
			StopTimeoutSeconds:     defaultStopTimeoutSeconds,
			PostLaunchGraceSeconds: defaultPostLaunchGraceSeconds,
		},
		ControlPlane: ControlPlane{
			Address:        defaultControlPlaneAddress,
			TimeoutSeconds: defaultControlPlaneTimeout,
		},
		Reconciler: Reconciler{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			LockStaleMinutes:    defaultLockStaleMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Stations: map[string]Station{},
	}
}
