package constants

import "time"

const (
	AppName            = "habitkeep"
	DefaultKeyringUser = "database-connection"
	DefaultDBFile      = "habitkeep.db"
	ConfigFileName     = "config.toml"
	Version            = "v0.3.0"

	// DateFormat is the canonical calendar day format (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat is used by monthly reports (YYYY-MM)
	MonthFormat = "2006-01"

	// Sane bounds for day strings accepted by the engine
	MinYear = 1970
	MaxYear = 2199

	// Habit limits
	MaxHabitNameLength = 100
	MinGoalDays        = 1
	MaxGoalDays        = 365

	// Completion metadata limits
	MaxNotesLength     = 500
	DefaultValue       = 1.0
	DefaultTargetValue = 1.0

	// MaxStreakRetries bounds recompute attempts after a streak version conflict
	MaxStreakRetries = 3

	// DefaultTimeout is applied by the CLI to each command's context
	DefaultTimeout = 30 * time.Second

	// DefaultUser is the owner id used when none is configured
	DefaultUser = "local"

	// DefaultTimezone resolves "today" in the system local zone
	DefaultTimezone = "Local"

	// Environment variables
	EnvDB           = "HABITKEEP_DB"
	EnvDBConnection = "HABITKEEP_DB_CONNECTION"
	EnvUser         = "HABITKEEP_USER"
	EnvTimezone     = "HABITKEEP_TZ"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "habitkeep-"
	BackupFileSuffix = ".db"

	// Report defaults
	DefaultLogDays = 14
	DefaultTopRuns = 5
)
