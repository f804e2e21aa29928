package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/analysis"
	"github.com/meinjens/cstatsentry/internal/constants"
	"github.com/meinjens/cstatsentry/internal/domain"
	"github.com/meinjens/cstatsentry/internal/metrics"
	"github.com/meinjens/cstatsentry/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// AnalysisService gathers a player's stored inputs, scores them with
// the engine and persists the immutable snapshot.
type AnalysisService struct {
	players  *repository.PlayerRepository
	matches  *repository.MatchRepository
	analyses *repository.AnalysisRepository
	profiles *ProfileService
	engine   *analysis.Engine
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewAnalysisService(
	players *repository.PlayerRepository,
	matches *repository.MatchRepository,
	analyses *repository.AnalysisRepository,
	profiles *ProfileService,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		players:  players,
		matches:  matches,
		analyses: analyses,
		profiles: profiles,
		engine:   analysis.NewEngine(analysis.DefaultRuleset()),
		metrics:  m,
		logger:   logger,
	}
}

// AnalyzePlayer scores a player and records the snapshot. A stale
// profile is refreshed first, best-effort: scoring proceeds on stored
// data when the refresh fails, with the missing inputs lowering
// confidence instead of failing the analysis.
func (s *AnalysisService) AnalyzePlayer(ctx context.Context, steamID string) (*domain.PlayerAnalysis, error) {
	if _, err := s.profiles.RefreshPlayer(ctx, steamID, false); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Err(err).Str("steam_id", steamID).Msg("profile refresh failed, scoring stored data")
	}

	player, err := s.players.Get(ctx, steamID)
	if err != nil {
		return nil, err
	}

	in := analysis.Inputs{
		Profile: analysis.Profile{
			AccountCreated: player.AccountCreated,
			Visibility:     player.VisibilityState,
			GamesOwned:     player.TotalGamesOwned,
			CS2Hours:       player.CS2Hours,
		},
	}

	if ban, err := s.players.GetBan(ctx, steamID); err == nil {
		in.Bans = &analysis.Bans{
			VACBanned:        ban.VACBanned,
			CommunityBanned:  ban.CommunityBanned,
			NumGameBans:      ban.NumGameBans,
			DaysSinceLastBan: ban.DaysSinceLastBan,
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	history, err := s.matches.PlayerHistory(ctx, steamID)
	if err != nil {
		return nil, err
	}
	in.Matches = make([]analysis.MatchStat, 0, len(history))
	for _, h := range history {
		in.Matches = append(in.Matches, analysis.MatchStat{
			Kills:       h.Kills,
			Deaths:      h.Deaths,
			Headshots:   h.Headshots,
			HeadshotPct: h.HeadshotPct,
			PlayedAt:    h.MatchDate,
		})
	}

	in.NameChanges = changeTimes[domain.NameChange](player.NameHistory, s.logger, steamID,
		func(c domain.NameChange) time.Time { return c.ChangedAt })
	in.CountryChanges = changeTimes[domain.CountryChange](player.CountryHistory, s.logger, steamID,
		func(c domain.CountryChange) time.Time { return c.ChangedAt })

	result := s.engine.Score(in, time.Now().UTC())

	analysisID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis id: %w", err)
	}

	snapshot := &domain.PlayerAnalysis{
		AnalysisID: analysisID,
		SteamID:    steamID,
		Score:      result.Score,
		Flags:      result.Flags,
		Confidence: result.Confidence,
		Version:    result.Version,
		Notes:      result.Notes,
		AnalyzedAt: time.Now().UTC(),
	}
	if err := s.analyses.Insert(ctx, snapshot); err != nil {
		return nil, err
	}

	s.metrics.Analyses.Inc()
	s.metrics.AnalysisScores.Observe(float64(result.Score))

	s.logger.Info().
		Str("steam_id", steamID).
		Int("score", result.Score).
		Float64("confidence", result.Confidence).
		Int("flags", len(result.Flags)).
		Str("version", result.Version).
		Msg("player analyzed")

	return snapshot, nil
}

// GetAnalysisHistory returns a player's snapshots newest first.
func (s *AnalysisService) GetAnalysisHistory(ctx context.Context, steamID string, limit int) ([]domain.PlayerAnalysis, error) {
	if limit <= 0 || limit > constants.AnalysisHistoryLimit {
		limit = constants.AnalysisHistoryLimit
	}
	return s.analyses.ListBySteamID(ctx, steamID, limit)
}

// GetLatestAnalysis returns the player's most recent snapshot.
func (s *AnalysisService) GetLatestAnalysis(ctx context.Context, steamID string) (*domain.PlayerAnalysis, error) {
	return s.analyses.Latest(ctx, steamID)
}

// changeTimes extracts change timestamps from a tracked JSON history.
// A corrupt history is logged and treated as empty.
func changeTimes[T any](history string, logger zerolog.Logger, steamID string, at func(T) time.Time) []time.Time {
	if history == "" {
		return nil
	}
	var changes []T
	if err := json.Unmarshal([]byte(history), &changes); err != nil {
		logger.Warn().Err(err).Str("steam_id", steamID).Msg("corrupt change history ignored")
		return nil
	}
	times := make([]time.Time, 0, len(changes))
	for _, c := range changes {
		times = append(times, at(c))
	}
	return times
}
