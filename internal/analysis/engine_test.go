package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func daysAgo(days int) time.Time {
	return testNow.AddDate(0, 0, -days)
}

// matchesWithKD builds n dated matches with a fixed kill/death line,
// one per day ending yesterday.
func matchesWithKD(n, kills, deaths int) []MatchStat {
	out := make([]MatchStat, n)
	for i := range out {
		out[i] = MatchStat{
			Kills:    kills,
			Deaths:   deaths,
			PlayedAt: daysAgo(n - i),
		}
	}
	return out
}

func TestScoreEmptyInputs(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	result := engine.Score(Inputs{}, testNow)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Flags)
	assert.Equal(t, "2.0", result.Version)
}

func TestScoreProfileCapScenario(t *testing.T) {
	// Account age 10 days, private profile, 3 owned games, 1500 CS2
	// hours: every profile flag fires and the category caps at 40.
	engine := NewEngine(DefaultRuleset())

	in := Inputs{Profile: Profile{
		AccountCreated: ptr(daysAgo(10)),
		Visibility:     ptr(1),
		GamesOwned:     ptr(3),
		CS2Hours:       ptr(1500.0),
	}}

	result := engine.Score(in, testNow)

	assert.Equal(t, 40, result.Score)
	assert.Contains(t, result.Flags, "new_account")
	assert.Contains(t, result.Flags, "private_profile")
	assert.Contains(t, result.Flags, "limited_games")
	assert.Contains(t, result.Flags, "cs2_only")
	assert.Less(t, result.Confidence, 1.0, "missing ban and match data reduces confidence")
}

func TestScoreProfileCapWithBans(t *testing.T) {
	// All profile flags plus ban flags sum to 70 raw points but the
	// category still caps at 40.
	engine := NewEngine(DefaultRuleset())

	in := Inputs{
		Profile: Profile{
			AccountCreated: ptr(daysAgo(10)),
			Visibility:     ptr(1),
			GamesOwned:     ptr(3),
			CS2Hours:       ptr(1500.0),
		},
		Bans: &Bans{VACBanned: true, DaysSinceLastBan: 100},
	}

	result := engine.Score(in, testNow)

	assert.Contains(t, result.Flags, "vac_banned")
	assert.Contains(t, result.Flags, "recent_ban")
	assert.Equal(t, 40, result.Score)
}

func TestNewAccountBoundary(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// 29 days triggers, 30 does not (strict less-than).
	result := engine.Score(Inputs{Profile: Profile{AccountCreated: ptr(daysAgo(29))}}, testNow)
	assert.Contains(t, result.Flags, "new_account")

	result = engine.Score(Inputs{Profile: Profile{AccountCreated: ptr(daysAgo(30))}}, testNow)
	assert.NotContains(t, result.Flags, "new_account")
}

func TestPublicProfileDoesNotFlag(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	result := engine.Score(Inputs{Profile: Profile{Visibility: ptr(3)}}, testNow)
	assert.NotContains(t, result.Flags, "private_profile")
	assert.Equal(t, 0, result.Score)
}

func TestPerformanceSpike(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// 20 baseline matches at KD 1.0, then 5 recent at KD 2.0.
	matches := matchesWithKD(20, 15, 15)
	recent := matchesWithKD(5, 30, 15)
	for i := range recent {
		recent[i].PlayedAt = daysAgo(5 - i)
	}
	matches = append(matches, recent...)

	result := engine.Score(Inputs{Matches: matches}, testNow)
	require.Contains(t, result.Flags, "performance_spike")
	assert.Equal(t, SeverityHigh, result.Flags["performance_spike"].Severity)
	assert.InDelta(t, 2.0, result.Flags["performance_spike"].Value, 0.01)
}

func TestPerformanceSpikeExactRatioTriggers(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// Recent mean exactly 1.5x baseline: inclusive threshold.
	matches := matchesWithKD(20, 10, 10) // KD 1.0
	matches = append(matches, matchesWithKD(5, 15, 10)...)

	result := engine.Score(Inputs{Matches: matches}, testNow)
	assert.Contains(t, result.Flags, "performance_spike")
}

func TestPerformanceSpikeNeedsBaseline(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// Only 7 matches: not enough baseline, no flag and no penalty.
	matches := matchesWithKD(2, 10, 10)
	matches = append(matches, matchesWithKD(5, 30, 10)...)

	result := engine.Score(Inputs{Matches: matches}, testNow)
	assert.NotContains(t, result.Flags, "performance_spike")
}

func TestHeadshotAnomaly(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	matches := matchesWithKD(12, 20, 15)
	for i := range matches {
		matches[i].HeadshotPct = 80
	}

	// 80% over 12 matches with 150 hours: above the 50% ceiling for
	// the <300h band.
	result := engine.Score(Inputs{
		Profile: Profile{CS2Hours: ptr(150.0)},
		Matches: matches,
	}, testNow)
	assert.Contains(t, result.Flags, "headshot_anomaly")

	// Unknown hours: dependent flag is skipped entirely.
	result = engine.Score(Inputs{Matches: matches}, testNow)
	assert.NotContains(t, result.Flags, "headshot_anomaly")
}

func TestHeadshotCeilingScalesWithHours(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	matches := matchesWithKD(12, 20, 15)
	for i := range matches {
		matches[i].HeadshotPct = 65
	}

	// 65% trips the mid band (ceiling 60)...
	result := engine.Score(Inputs{Profile: Profile{CS2Hours: ptr(500.0)}, Matches: matches}, testNow)
	assert.Contains(t, result.Flags, "headshot_anomaly")

	// ...but not the veteran band (ceiling 70).
	result = engine.Score(Inputs{Profile: Profile{CS2Hours: ptr(2000.0)}, Matches: matches}, testNow)
	assert.NotContains(t, result.Flags, "headshot_anomaly")
}

func TestConsistencyPattern(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// Identical KD every match: zero variance.
	result := engine.Score(Inputs{Matches: matchesWithKD(15, 20, 10)}, testNow)
	assert.Contains(t, result.Flags, "consistency_pattern")

	// Below-average player with flat stats is not flagged.
	result = engine.Score(Inputs{Matches: matchesWithKD(15, 5, 10)}, testNow)
	assert.NotContains(t, result.Flags, "consistency_pattern")
}

func TestSkillHoursMismatch(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	matches := matchesWithKD(12, 30, 10) // KD 3.0

	result := engine.Score(Inputs{Profile: Profile{CS2Hours: ptr(50.0)}, Matches: matches}, testNow)
	assert.Contains(t, result.Flags, "skill_hours_mismatch")

	result = engine.Score(Inputs{Profile: Profile{CS2Hours: ptr(900.0)}, Matches: matches}, testNow)
	assert.NotContains(t, result.Flags, "skill_hours_mismatch")
}

func TestHistoricalFlags(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	in := Inputs{
		NameChanges:    []time.Time{daysAgo(5), daysAgo(20), daysAgo(60), daysAgo(200)},
		CountryChanges: []time.Time{daysAgo(10), daysAgo(100)},
	}

	result := engine.Score(in, testNow)
	require.Contains(t, result.Flags, "frequent_name_changes")
	assert.Equal(t, 3.0, result.Flags["frequent_name_changes"].Value, "change outside the 90-day window not counted")
	assert.Contains(t, result.Flags, "country_hopping")
}

func TestImprovementTrend(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	// KD climbing steadily from 1.0 to 2.4 over 15 matches.
	matches := make([]MatchStat, 15)
	for i := range matches {
		matches[i] = MatchStat{
			Kills:    10 + i,
			Deaths:   10,
			PlayedAt: daysAgo(15 - i),
		}
	}

	result := engine.Score(Inputs{Matches: matches}, testNow)
	assert.Contains(t, result.Flags, "improvement_trend")

	// Flat performance has no trend.
	result = engine.Score(Inputs{Matches: matchesWithKD(15, 10, 10)}, testNow)
	assert.NotContains(t, result.Flags, "improvement_trend")
}

func TestCategoryCapsAndCompositeRange(t *testing.T) {
	engine := NewEngine(DefaultRuleset())
	rs := DefaultRuleset()

	// Saturate everything at once.
	matches := matchesWithKD(20, 10, 10)
	spiked := matchesWithKD(5, 40, 10)
	for i := range spiked {
		spiked[i].HeadshotPct = 95
		spiked[i].PlayedAt = daysAgo(5 - i)
	}
	matches = append(matches, spiked...)
	// Rising tail so the trend flag fires too.
	for i := range matches {
		matches[i].Kills = 10 + i
		matches[i].HeadshotPct = 95
	}

	in := Inputs{
		Profile: Profile{
			AccountCreated: ptr(daysAgo(5)),
			Visibility:     ptr(1),
			GamesOwned:     ptr(2),
			CS2Hours:       ptr(150.0),
		},
		Bans:           &Bans{VACBanned: true, DaysSinceLastBan: 30},
		Matches:        matches,
		NameChanges:    []time.Time{daysAgo(1), daysAgo(2), daysAgo(3), daysAgo(4)},
		CountryChanges: []time.Time{daysAgo(1), daysAgo(2), daysAgo(3)},
	}

	result := engine.Score(in, testNow)

	assert.LessOrEqual(t, result.Score, 100)
	assert.GreaterOrEqual(t, result.Score, 0)

	profile, stats, hist := categorySums(rs, result)
	assert.LessOrEqual(t, profile, rs.ProfileCap)
	assert.LessOrEqual(t, stats, rs.StatisticalCap)
	assert.LessOrEqual(t, hist, rs.HistoricalCap)
	assert.Equal(t, 100, result.Score, "fully saturated inputs hit the ceiling")
}

// categorySums recomputes capped per-category totals from the flags.
func categorySums(rs Ruleset, result Result) (profile, stats, hist int) {
	categories := map[string]*int{
		"new_account": &profile, "private_profile": &profile, "limited_games": &profile,
		"cs2_only": &profile, "vac_banned": &profile, "recent_ban": &profile,
		"performance_spike": &stats, "headshot_anomaly": &stats,
		"consistency_pattern": &stats, "skill_hours_mismatch": &stats,
		"frequent_name_changes": &hist, "country_hopping": &hist, "improvement_trend": &hist,
	}
	for name, flag := range result.Flags {
		*categories[name] += flag.Points
	}
	if profile > rs.ProfileCap {
		profile = rs.ProfileCap
	}
	if stats > rs.StatisticalCap {
		stats = rs.StatisticalCap
	}
	if hist > rs.HistoricalCap {
		hist = rs.HistoricalCap
	}
	return profile, stats, hist
}

func TestScoreMonotonicUnderAddedFlag(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	base := Inputs{Profile: Profile{AccountCreated: ptr(daysAgo(10))}}
	before := engine.Score(base, testNow)

	withMore := base
	withMore.Profile.Visibility = ptr(1)
	after := engine.Score(withMore, testNow)

	assert.GreaterOrEqual(t, after.Score, before.Score,
		"adding a triggered flag to a non-saturated category never lowers the score")
}

func TestScoreDeterministic(t *testing.T) {
	engine := NewEngine(DefaultRuleset())

	in := Inputs{
		Profile: Profile{AccountCreated: ptr(daysAgo(10)), Visibility: ptr(1)},
		Matches: matchesWithKD(12, 20, 10),
	}

	a := engine.Score(in, testNow)
	b := engine.Score(in, testNow)
	assert.Equal(t, a, b)
}

func TestRulesetVersioning(t *testing.T) {
	assert.Equal(t, "2.0", RulesetFor(DefaultVersion).Version)
	assert.Equal(t, "1.0", RulesetFor("1.0").Version)
	assert.Equal(t, DefaultVersion, RulesetFor("unknown").Version)

	// v1 never scored bans.
	engine := NewEngine(RulesetFor("1.0"))
	result := engine.Score(Inputs{Bans: &Bans{VACBanned: true, DaysSinceLastBan: 10}}, testNow)
	assert.NotContains(t, result.Flags, "vac_banned")
	assert.Equal(t, 0, result.Score)
}
