// Package analysis implements the suspicion scoring engine: a pure,
// deterministic, versioned classifier over a player's profile, ban
// and match-history inputs. It always produces a score; missing
// inputs skip their dependent flags and lower confidence instead of
// failing.
package analysis

import (
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"
)

// Profile is the snapshot of profile inputs. Nil fields mean "not
// fetched yet", which skips dependent flags.
type Profile struct {
	AccountCreated *time.Time
	Visibility     *int // 1 private, 3 public
	GamesOwned     *int
	CS2Hours       *float64
}

// Bans is the ban-status input. A nil *Bans means not fetched.
type Bans struct {
	VACBanned        bool
	CommunityBanned  bool
	NumGameBans      int
	DaysSinceLastBan int
}

// MatchStat is one match line, oldest first in Inputs.Matches.
type MatchStat struct {
	Kills       int
	Deaths      int
	Headshots   int
	HeadshotPct float64
	PlayedAt    time.Time
}

// Inputs is everything the engine scores from. All fields optional.
type Inputs struct {
	Profile        Profile
	Bans           *Bans
	Matches        []MatchStat
	NameChanges    []time.Time
	CountryChanges []time.Time
}

// Result is one scoring outcome. Score is in [0, 100]; Confidence
// reflects how many categories had sufficient data.
type Result struct {
	Score      int
	Flags      map[string]domain.AnalysisFlag
	Confidence float64
	Version    string
	Notes      string
}

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Per-flag confidence by severity. Recorded on each triggered flag.
func flagConfidence(severity string) float64 {
	switch severity {
	case SeverityHigh:
		return 0.9
	case SeverityMedium:
		return 0.75
	default:
		return 0.6
	}
}

// Engine scores players against one fixed ruleset. Stateless and
// safe for concurrent use.
type Engine struct {
	rs Ruleset
}

func NewEngine(rs Ruleset) *Engine {
	return &Engine{rs: rs}
}

// Score evaluates all flags against the inputs. Deterministic for a
// given (inputs, now) pair.
func (e *Engine) Score(in Inputs, now time.Time) Result {
	flags := make(map[string]domain.AnalysisFlag)

	profileScore, profileConf := e.profileFlags(in, now, flags)
	statScore, statConf := e.statisticalFlags(in, flags)
	histScore, histConf := e.historicalFlags(in, now, flags)

	score := min(profileScore, e.rs.ProfileCap) +
		min(statScore, e.rs.StatisticalCap) +
		min(histScore, e.rs.HistoricalCap)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Result{
		Score:      score,
		Flags:      flags,
		Confidence: (profileConf + statConf + histConf) / 3,
		Version:    e.rs.Version,
		Notes:      fmt.Sprintf("analysis based on %d detection criteria", len(flags)),
	}
}

func (e *Engine) addFlag(flags map[string]domain.AnalysisFlag, name, severity, description string, value float64, points int) int {
	if points <= 0 {
		return 0
	}
	flags[name] = domain.AnalysisFlag{
		Severity:    severity,
		Confidence:  flagConfidence(severity),
		Description: description,
		Value:       value,
		Points:      points,
	}
	return points
}

func (e *Engine) profileFlags(in Inputs, now time.Time, flags map[string]domain.AnalysisFlag) (score int, confidence float64) {
	rs := e.rs

	if in.Profile.AccountCreated != nil {
		ageDays := int(now.Sub(*in.Profile.AccountCreated).Hours() / 24)
		if ageDays < rs.NewAccountDays {
			score += e.addFlag(flags, "new_account", SeverityMedium,
				fmt.Sprintf("account created %d days ago", ageDays), float64(ageDays), rs.NewAccountPoints)
		}
	}

	if in.Profile.Visibility != nil && *in.Profile.Visibility == 1 {
		score += e.addFlag(flags, "private_profile", SeverityHigh,
			"profile is private", 1, rs.PrivateProfilePoints)
	}

	if in.Profile.GamesOwned != nil && *in.Profile.GamesOwned < rs.LimitedGamesBelow {
		score += e.addFlag(flags, "limited_games", SeverityMedium,
			fmt.Sprintf("only %d games owned", *in.Profile.GamesOwned), float64(*in.Profile.GamesOwned), rs.LimitedGamesPoints)
	}

	if in.Profile.GamesOwned != nil && in.Profile.CS2Hours != nil &&
		*in.Profile.GamesOwned <= rs.CS2OnlyMaxGames && *in.Profile.CS2Hours > rs.CS2OnlyMinHours {
		score += e.addFlag(flags, "cs2_only", SeverityLow,
			fmt.Sprintf("primarily plays CS2 (%.0f hours) with few other games", *in.Profile.CS2Hours), *in.Profile.CS2Hours, rs.CS2OnlyPoints)
	}

	if in.Bans != nil {
		banned := in.Bans.VACBanned || in.Bans.NumGameBans > 0
		if banned {
			score += e.addFlag(flags, "vac_banned", SeverityHigh,
				"VAC or game ban on record", 1, rs.VACBanPoints)
			if in.Bans.DaysSinceLastBan < rs.RecentBanDays {
				score += e.addFlag(flags, "recent_ban", SeverityHigh,
					fmt.Sprintf("last ban %d days ago", in.Bans.DaysSinceLastBan), float64(in.Bans.DaysSinceLastBan), rs.RecentBanPoints)
			}
		}
	}

	// Confidence: fraction of the three profile inputs present.
	present := 0
	if in.Profile.AccountCreated != nil || in.Profile.Visibility != nil {
		present++
	}
	if in.Profile.GamesOwned != nil {
		present++
	}
	if in.Bans != nil {
		present++
	}
	return score, float64(present) / 3
}

func (e *Engine) statisticalFlags(in Inputs, flags map[string]domain.AnalysisFlag) (score int, confidence float64) {
	rs := e.rs
	n := len(in.Matches)
	if n == 0 {
		return 0, 0
	}

	kds := make([]float64, n)
	for i, m := range in.Matches {
		kds[i] = kd(m)
	}

	// Performance spike: recent-window mean against baseline mean.
	if n >= 2*rs.RecentWindow {
		recent := kds[n-rs.RecentWindow:]
		baseStart := n - rs.RecentWindow - rs.BaselineWindow
		if baseStart < 0 {
			baseStart = 0
		}
		baseline := kds[baseStart : n-rs.RecentWindow]
		if len(baseline) >= rs.RecentWindow {
			baseMean := mean(baseline)
			recentMean := mean(recent)
			if baseMean > 0 && recentMean >= rs.SpikeRatio*baseMean {
				score += e.addFlag(flags, "performance_spike", SeverityHigh,
					fmt.Sprintf("recent KD %.2f is %.1fx the %.2f baseline", recentMean, recentMean/baseMean, baseMean),
					recentMean/baseMean, rs.SpikePoints)
			}
		}
	}

	// Headshot anomaly: mean headshot rate above the ceiling for the
	// player's hours band. Needs known hours.
	if in.Profile.CS2Hours != nil {
		var hsRates []float64
		for _, m := range in.Matches {
			if m.Kills == 0 {
				continue
			}
			rate := m.HeadshotPct
			if rate == 0 && m.Headshots > 0 {
				rate = float64(m.Headshots) / float64(m.Kills) * 100
			}
			hsRates = append(hsRates, rate)
		}
		if len(hsRates) >= rs.MinStatMatches {
			ceiling := rs.HeadshotCeilingLow
			switch hours := *in.Profile.CS2Hours; {
			case hours >= 1500:
				ceiling = rs.HeadshotCeilingHigh
			case hours >= 300:
				ceiling = rs.HeadshotCeilingMid
			}
			if hsMean := mean(hsRates); hsMean > ceiling {
				score += e.addFlag(flags, "headshot_anomaly", SeverityHigh,
					fmt.Sprintf("%.1f%% mean headshot rate exceeds the %.0f%% ceiling for %.0f hours", hsMean, ceiling, *in.Profile.CS2Hours),
					hsMean, rs.HeadshotPoints)
			}
		}
	}

	if n >= rs.MinStatMatches {
		kdMean := mean(kds)

		// Consistency: variance too low to be plausible at this
		// sample size.
		if kdMean >= rs.ConsistencyMinKD {
			cv := stddev(kds) / kdMean
			if cv < rs.ConsistencyMaxCV {
				score += e.addFlag(flags, "consistency_pattern", SeverityMedium,
					fmt.Sprintf("KD variation coefficient %.3f over %d matches", cv, n), cv, rs.ConsistencyPoints)
			}
		}

		// Skill far above what the hours suggest.
		if in.Profile.CS2Hours != nil && kdMean >= rs.SkillMismatchMinKD && *in.Profile.CS2Hours < rs.SkillMismatchMaxHours {
			score += e.addFlag(flags, "skill_hours_mismatch", SeverityHigh,
				fmt.Sprintf("%.2f mean KD with only %.0f hours", kdMean, *in.Profile.CS2Hours), kdMean, rs.SkillMismatchPoints)
		}
	}

	conf := float64(n) / float64(rs.MinStatMatches)
	if conf > 1 {
		conf = 1
	}
	return score, conf
}

func (e *Engine) historicalFlags(in Inputs, now time.Time, flags map[string]domain.AnalysisFlag) (score int, confidence float64) {
	rs := e.rs

	nameChanges := countSince(in.NameChanges, now.AddDate(0, 0, -rs.NameChangeWindowDays))
	if nameChanges >= rs.NameChangeCount {
		score += e.addFlag(flags, "frequent_name_changes", SeverityMedium,
			fmt.Sprintf("%d name changes in the last %d days", nameChanges, rs.NameChangeWindowDays),
			float64(nameChanges), rs.NameChangePoints)
	}

	countryChanges := countSince(in.CountryChanges, now.AddDate(0, 0, -rs.CountryChangeWindowDays))
	if countryChanges >= rs.CountryChangeCount {
		score += e.addFlag(flags, "country_hopping", SeverityLow,
			fmt.Sprintf("%d country changes in the last %d days", countryChanges, rs.CountryChangeWindowDays),
			float64(countryChanges), rs.CountryChangePoints)
	}

	// Directional performance trend over time.
	datedKDs := make([]float64, 0, len(in.Matches))
	var first, last time.Time
	for _, m := range in.Matches {
		if m.PlayedAt.IsZero() {
			continue
		}
		if first.IsZero() {
			first = m.PlayedAt
		}
		last = m.PlayedAt
		datedKDs = append(datedKDs, kd(m))
	}
	if len(datedKDs) >= rs.TrendMinMatches && last.Sub(first) >= time.Duration(rs.TrendMinSpanDays)*24*time.Hour {
		if s := slope(datedKDs); s >= rs.TrendMinSlope {
			score += e.addFlag(flags, "improvement_trend", SeverityMedium,
				fmt.Sprintf("KD improving %.3f per match over %d matches", s, len(datedKDs)), s, rs.TrendPoints)
		}
	}

	// Confidence: half from profile history tracking, half from the
	// dated match sample.
	conf := 0.0
	if in.Profile.AccountCreated != nil || in.Profile.Visibility != nil || len(in.NameChanges) > 0 || len(in.CountryChanges) > 0 {
		conf += 0.5
	}
	sample := float64(len(datedKDs)) / float64(rs.TrendMinMatches)
	if sample > 1 {
		sample = 1
	}
	conf += 0.5 * sample
	return score, conf
}

func kd(m MatchStat) float64 {
	deaths := m.Deaths
	if deaths < 1 {
		deaths = 1
	}
	return float64(m.Kills) / float64(deaths)
}

func countSince(events []time.Time, cutoff time.Time) int {
	count := 0
	for _, t := range events {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
