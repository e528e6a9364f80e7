package constants

import "time"

// SessionState represents the current state of the TUI application
type SessionState int

const (
	AppName            = "authip"
	DefaultKeyringUser = "api-token"
	DefaultConfigDir   = "~/.config/authip"
	DefaultConfigFile  = "~/.config/authip/config.json"
	DefaultJournalPath = "~/.config/authip/journal.db"
	DefaultAPIURL      = "https://api-js-in100.vercel.app"
	Version            = "v0.3.0"

	// StorageDateFormat is the date format exchanged with the API (YYYY-MM-DD)
	StorageDateFormat = "2006-01-02"

	// StorageDateTimeFormat is the date-time format exchanged with the API
	StorageDateTimeFormat = "2006-01-02 15:04:05"

	// DisplayDateFormat is the Brazilian date format shown to users (DD/MM/YYYY)
	DisplayDateFormat = "02/01/2006"

	// DisplayTimeFormat is the time format accepted in edit forms (HH:MM:SS)
	DisplayTimeFormat = "15:04:05"

	// MidnightTime is used when a stored value carries no time part
	MidnightTime = "00:00:00"

	// Timezone the API stamps its records in
	APITimezone = "America/Sao_Paulo"

	// DefaultExpirationDays is the offset of the create form's default expiration
	DefaultExpirationDays = 31

	// Client constants
	DefaultRequestTimeout = 15 * time.Second
	DefaultPollInterval   = 30 * time.Second
	BannerDuration        = 3 * time.Second
	RequestIDHeader       = "X-Request-ID"
	TokenEnvVar           = "AUTHIP_TOKEN"

	// Server constants
	DefaultServeAddr     = "127.0.0.1:8080"
	ServerLockfileName   = "server.lock"
	ServerShutdownGrace  = 5 * time.Second
	DefaultJournalLimit  = 20
	PostgresTestEnvVar   = "AUTHIP_TEST_POSTGRES"
	PostgresSearchSchema = "authip"

	// Journal actions
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	// Journal outcomes
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Session States
const (
	StateTable SessionState = iota
	StateFilter
	StateCreate
	StateEdit
	StateConfirmDelete
)
