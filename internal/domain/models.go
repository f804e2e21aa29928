package domain

import (
	"time"
)

type User struct {
	UserID        string     `db:"user_id" json:"user_id"`
	SteamID       string     `db:"steam_id" json:"steam_id"`
	SteamName     string     `db:"steam_name" json:"steam_name"`
	AvatarURL     string     `db:"avatar_url" json:"avatar_url"`
	AuthCode      string     `db:"auth_code" json:"-"`
	LastShareCode string     `db:"last_share_code" json:"-"`
	SyncEnabled   bool       `db:"sync_enabled" json:"sync_enabled"`
	LastSyncAt    *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Match is the canonical session record, keyed by a content-derived
// identity: the decoded sharecode match id when available, otherwise
// the provider-native id. Never deleted.
type Match struct {
	MatchID        string    `db:"match_id" json:"match_id"`
	ShareCode      string    `db:"share_code" json:"share_code,omitempty"`
	MapName        string    `db:"map_name" json:"map_name,omitempty"`
	MatchDate      time.Time `db:"match_date" json:"match_date"`
	ScoreTeam1     int       `db:"score_team1" json:"score_team1"`
	ScoreTeam2     int       `db:"score_team2" json:"score_team2"`
	WinningTeam    int       `db:"winning_team" json:"winning_team"` // 0 unknown/draw, 1, 2
	DemoURL        string    `db:"demo_url" json:"demo_url,omitempty"`
	GameType       string    `db:"game_type" json:"game_type,omitempty"`
	SourcePriority int       `db:"source_priority" json:"-"`
	Processed      bool      `db:"processed" json:"processed"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MatchPlayer holds one player's line in one match. At most one row
// per (match_id, steam_id); later providers enrich the existing row.
type MatchPlayer struct {
	MatchID        string    `db:"match_id" json:"match_id"`
	SteamID        string    `db:"steam_id" json:"steam_id"`
	Name           string    `db:"name" json:"name,omitempty"`
	Team           int       `db:"team" json:"team"` // 1 or 2, 0 unknown
	Kills          int       `db:"kills" json:"kills"`
	Deaths         int       `db:"deaths" json:"deaths"`
	Assists        int       `db:"assists" json:"assists"`
	Score          int       `db:"score" json:"score"`
	Headshots      int       `db:"headshots" json:"headshots"`
	HeadshotPct    float64   `db:"headshot_pct" json:"headshot_pct"`
	ADR            float64   `db:"adr" json:"adr"`
	Rating         float64   `db:"rating" json:"rating"`
	MVPs           int       `db:"mvps" json:"mvps"`
	SourcePriority int       `db:"source_priority" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Player is the per-steam-identity profile, independent of any match.
// Nullable columns use pointers so the scoring engine can tell "not
// fetched yet" apart from a genuine zero.
type Player struct {
	SteamID          string     `db:"steam_id" json:"steam_id"`
	CurrentName      string     `db:"current_name" json:"current_name"`
	NameHistory      string     `db:"name_history" json:"-"` // JSON [{name, changed_at}]
	AvatarURL        string     `db:"avatar_url" json:"avatar_url,omitempty"`
	ProfileURL       string     `db:"profile_url" json:"profile_url,omitempty"`
	AccountCreated   *time.Time `db:"account_created" json:"account_created,omitempty"`
	LastLogoff       *time.Time `db:"last_logoff" json:"last_logoff,omitempty"`
	ProfileState     *int       `db:"profile_state" json:"profile_state,omitempty"`
	VisibilityState  *int       `db:"visibility_state" json:"visibility_state,omitempty"` // 1 private, 3 public
	CountryCode      string     `db:"country_code" json:"country_code,omitempty"`
	CountryHistory   string     `db:"country_history" json:"-"` // JSON [{code, changed_at}]
	CS2Hours         *float64   `db:"cs2_hours" json:"cs2_hours,omitempty"`
	TotalGamesOwned  *int       `db:"total_games_owned" json:"total_games_owned,omitempty"`
	ProfileUpdatedAt *time.Time `db:"profile_updated_at" json:"profile_updated_at,omitempty"`
	StatsUpdatedAt   *time.Time `db:"stats_updated_at" json:"stats_updated_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

type NameChange struct {
	Name      string    `json:"name"`
	ChangedAt time.Time `json:"changed_at"`
}

type CountryChange struct {
	Code      string    `json:"code"`
	ChangedAt time.Time `json:"changed_at"`
}

type PlayerBan struct {
	SteamID          string    `db:"steam_id" json:"steam_id"`
	CommunityBanned  bool      `db:"community_banned" json:"community_banned"`
	VACBanned        bool      `db:"vac_banned" json:"vac_banned"`
	NumVACBans       int       `db:"num_vac_bans" json:"num_vac_bans"`
	DaysSinceLastBan int       `db:"days_since_last_ban" json:"days_since_last_ban"`
	NumGameBans      int       `db:"num_game_bans" json:"num_game_bans"`
	EconomyBan       string    `db:"economy_ban" json:"economy_ban"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// AnalysisFlag is one triggered detection criterion inside a snapshot.
type AnalysisFlag struct {
	Severity    string  `json:"severity"` // low, medium, high
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Points      int     `json:"points"`
}

// PlayerAnalysis is an immutable scoring snapshot. History is the
// audit trail; rows are never updated or deleted.
type PlayerAnalysis struct {
	AnalysisID string                  `json:"analysis_id"`
	SteamID    string                  `json:"steam_id"`
	Score      int                     `json:"score"`
	Flags      map[string]AnalysisFlag `json:"flags"`
	Confidence float64                 `json:"confidence"`
	Version    string                  `json:"version"`
	Notes      string                  `json:"notes,omitempty"`
	AnalyzedAt time.Time               `json:"analyzed_at"`
}

// Sync run states.
const (
	RunQueued         = "queued"
	RunRunning        = "running"
	RunPartialSuccess = "partial_success"
	RunSuccess        = "success"
	RunFailed         = "failed"
)

// Per-provider sub-result states.
const (
	ProviderOK     = "ok"
	ProviderFailed = "failed"
)

// ProviderResult is one provider's sub-result inside a SyncRun.
type ProviderResult struct {
	Status          string `json:"status"`
	SessionsListed  int    `json:"sessions_listed"`
	SessionsFetched int    `json:"sessions_fetched"`
	MatchesCreated  int    `json:"matches_created"`
	MatchesEnriched int    `json:"matches_enriched"`
	RecordsSkipped  int    `json:"records_skipped"`
	Cursor          string `json:"cursor,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SyncRun is the per-invocation status record for one user's sync.
type SyncRun struct {
	RunID      string                    `json:"run_id"`
	UserID     string                    `json:"user_id"`
	Status     string                    `json:"status"`
	Providers  map[string]ProviderResult `json:"providers"`
	Error      string                    `json:"error,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
}

// Teammate links a user to a player they shared a team with.
type Teammate struct {
	UserID          string    `db:"user_id" json:"user_id"`
	PlayerSteamID   string    `db:"player_steam_id" json:"player_steam_id"`
	MatchesTogether int       `db:"matches_together" json:"matches_together"`
	FirstSeen       time.Time `db:"first_seen" json:"first_seen"`
	LastSeen        time.Time `db:"last_seen" json:"last_seen"`
}
