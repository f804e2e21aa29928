package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	SyncRunTimeout     = 5 * time.Minute
)

const (
	// RunLockWait bounds how long a second sync for the same user
	// waits on the per-user lock before being rejected.
	RunLockWait = 2 * time.Second

	// StaleRunAge is the age past which a run still marked running is
	// treated as crashed and no longer blocks new runs.
	StaleRunAge = 10 * time.Minute

	// DetailFetchLimit bounds concurrent session-detail fetches per
	// provider so external rate limits are not overwhelmed.
	DetailFetchLimit = 4

	// SessionListLimit caps how many sessions one run ingests per
	// provider.
	SessionListLimit = 25

	RetryMaxAttempts = 3
	RetryBaseDelay   = 500 * time.Millisecond
)

const (
	ProfileRefreshTTL = 24 * time.Hour
	BanRefreshAge     = 7 * 24 * time.Hour
	BanRefreshBatch   = 100
	SteamIDBatchLimit = 100
)

const (
	SyncWorkers          = 4
	AnalysisHistoryLimit = 20
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// DefaultReplayServer picks the valve.net replay host used when
	// constructing demo URLs from a sharecode.
	DefaultReplayServer = 124
)
