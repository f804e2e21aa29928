package analysis

// Ruleset externalizes every flag's trigger threshold and point value
// so historical snapshots stay reproducible: a snapshot records the
// version it was scored with, and RulesetFor returns that exact
// ruleset forever.
//
// Threshold direction per flag (inclusive vs exclusive) is documented
// on each field.
type Ruleset struct {
	Version string

	// Category ceilings. The composite score is the sum of the three
	// capped sub-scores, clamped to [0, 100].
	ProfileCap     int
	StatisticalCap int
	HistoricalCap  int

	// Profile flags.

	// new_account: account age in days strictly below NewAccountDays.
	NewAccountDays   int
	NewAccountPoints int

	// private_profile: visibility state == 1.
	PrivateProfilePoints int

	// limited_games: owned games strictly below LimitedGamesBelow.
	LimitedGamesBelow  int
	LimitedGamesPoints int

	// cs2_only: owned games <= CS2OnlyMaxGames (inclusive) and CS2
	// hours strictly above CS2OnlyMinHours.
	CS2OnlyMaxGames int
	CS2OnlyMinHours float64
	CS2OnlyPoints   int

	// vac_banned: any VAC or game ban on record.
	VACBanPoints int

	// recent_ban: banned and days since last ban strictly below
	// RecentBanDays.
	RecentBanDays   int
	RecentBanPoints int

	// Statistical flags.

	// performance_spike: recent-window mean KD at least SpikeRatio
	// times the baseline mean (inclusive). Needs RecentWindow recent
	// and at least RecentWindow baseline matches.
	RecentWindow   int
	BaselineWindow int
	SpikeRatio     float64
	SpikePoints    int

	// MinStatMatches is the sample floor for the remaining
	// statistical flags.
	MinStatMatches int

	// headshot_anomaly: mean headshot rate strictly above the ceiling
	// for the player's hours band (<300, 300-1499, >=1500).
	HeadshotCeilingLow  float64
	HeadshotCeilingMid  float64
	HeadshotCeilingHigh float64
	HeadshotPoints      int

	// consistency_pattern: mean KD at least ConsistencyMinKD
	// (inclusive) with coefficient of variation strictly below
	// ConsistencyMaxCV.
	ConsistencyMinKD  float64
	ConsistencyMaxCV  float64
	ConsistencyPoints int

	// skill_hours_mismatch: mean KD at least SkillMismatchMinKD
	// (inclusive) with known hours strictly below
	// SkillMismatchMaxHours.
	SkillMismatchMinKD    float64
	SkillMismatchMaxHours float64
	SkillMismatchPoints   int

	// Historical flags.

	// frequent_name_changes: at least NameChangeCount changes
	// (inclusive) in the trailing window.
	NameChangeWindowDays int
	NameChangeCount      int
	NameChangePoints     int

	// country_hopping: at least CountryChangeCount changes
	// (inclusive) in the trailing window.
	CountryChangeWindowDays int
	CountryChangeCount      int
	CountryChangePoints     int

	// improvement_trend: least-squares KD slope per match of at least
	// TrendMinSlope (inclusive), over TrendMinMatches dated matches
	// spanning TrendMinSpanDays or more.
	TrendMinMatches  int
	TrendMinSpanDays int
	TrendMinSlope    float64
	TrendPoints      int
}

// DefaultVersion is the ruleset new analyses are scored with.
const DefaultVersion = "2.0"

// RulesetFor returns the ruleset recorded under a snapshot's version.
// Unknown versions fall back to the default so a replay never fails.
func RulesetFor(version string) Ruleset {
	switch version {
	case "1.0":
		return rulesetV1()
	default:
		return rulesetV2()
	}
}

// DefaultRuleset is the ruleset for new analyses.
func DefaultRuleset() Ruleset {
	return rulesetV2()
}

// rulesetV1 is the original profile-only scoring: statistical and
// historical categories existed but had no evaluable flags, and ban
// state was not scored.
func rulesetV1() Ruleset {
	rs := rulesetV2()
	rs.Version = "1.0"
	rs.VACBanPoints = 0
	rs.RecentBanPoints = 0
	rs.SpikePoints = 0
	rs.HeadshotPoints = 0
	rs.ConsistencyPoints = 0
	rs.SkillMismatchPoints = 0
	rs.NameChangePoints = 0
	rs.CountryChangePoints = 0
	rs.TrendPoints = 0
	return rs
}

func rulesetV2() Ruleset {
	return Ruleset{
		Version: "2.0",

		ProfileCap:     40,
		StatisticalCap: 40,
		HistoricalCap:  20,

		NewAccountDays:       30,
		NewAccountPoints:     10,
		PrivateProfilePoints: 15,
		LimitedGamesBelow:    5,
		LimitedGamesPoints:   10,
		CS2OnlyMaxGames:      3,
		CS2OnlyMinHours:      100,
		CS2OnlyPoints:        5,
		VACBanPoints:         20,
		RecentBanDays:        365,
		RecentBanPoints:      10,

		RecentWindow:          5,
		BaselineWindow:        20,
		SpikeRatio:            1.5,
		SpikePoints:           15,
		MinStatMatches:        10,
		HeadshotCeilingLow:    50,
		HeadshotCeilingMid:    60,
		HeadshotCeilingHigh:   70,
		HeadshotPoints:        15,
		ConsistencyMinKD:      1.0,
		ConsistencyMaxCV:      0.10,
		ConsistencyPoints:     10,
		SkillMismatchMinKD:    2.0,
		SkillMismatchMaxHours: 200,
		SkillMismatchPoints:   10,

		NameChangeWindowDays:    90,
		NameChangeCount:         3,
		NameChangePoints:        10,
		CountryChangeWindowDays: 180,
		CountryChangeCount:      2,
		CountryChangePoints:     5,
		TrendMinMatches:         10,
		TrendMinSpanDays:        7,
		TrendMinSlope:           0.02,
		TrendPoints:             10,
	}
}
