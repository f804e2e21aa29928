package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/api"
	"github.com/meinjens/cstatsentry/internal/constants"
	"github.com/meinjens/cstatsentry/internal/domain"
	"github.com/meinjens/cstatsentry/internal/repository"

	"github.com/rs/zerolog"
)

// ProfileService keeps player profiles and ban state fresh from the
// Steam Web API. Refreshes are best-effort: a partial fetch updates
// what it got and leaves the rest untouched.
type ProfileService struct {
	players *repository.PlayerRepository
	steam   *api.SteamClient
	logger  zerolog.Logger
}

func NewProfileService(players *repository.PlayerRepository, steam *api.SteamClient, logger zerolog.Logger) *ProfileService {
	return &ProfileService{players: players, steam: steam, logger: logger}
}

// RefreshPlayer re-fetches a player's profile, bans and owned games.
// Without force, a profile refreshed within the TTL is returned as-is.
// Name and country changes are detected against the stored row and
// appended to the tracked histories.
func (s *ProfileService) RefreshPlayer(ctx context.Context, steamID string, force bool) (*domain.Player, error) {
	player, err := s.players.Get(ctx, steamID)
	if errors.Is(err, repository.ErrNotFound) {
		player = &domain.Player{SteamID: steamID}
	} else if err != nil {
		return nil, err
	}

	if !force && player.ProfileUpdatedAt != nil && time.Since(*player.ProfileUpdatedAt) < constants.ProfileRefreshTTL {
		return player, nil
	}

	now := time.Now().UTC()

	summaries, err := s.steam.GetPlayerSummaries(ctx, []string{steamID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player summary: %w", err)
	}
	if len(summaries.Response.Players) == 0 {
		return nil, fmt.Errorf("steam returned no profile for %s", steamID)
	}
	summary := summaries.Response.Players[0]

	if player.CurrentName != "" && summary.PersonaName != "" && summary.PersonaName != player.CurrentName {
		history, err := appendNameChange(player.NameHistory, player.CurrentName, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("steam_id", steamID).Msg("failed to track name change")
		} else {
			player.NameHistory = history
		}
	}
	if summary.PersonaName != "" {
		player.CurrentName = summary.PersonaName
	}

	if player.CountryCode != "" && summary.LocCountryCode != "" && summary.LocCountryCode != player.CountryCode {
		history, err := appendCountryChange(player.CountryHistory, player.CountryCode, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("steam_id", steamID).Msg("failed to track country change")
		} else {
			player.CountryHistory = history
		}
	}
	if summary.LocCountryCode != "" {
		player.CountryCode = summary.LocCountryCode
	}

	player.AvatarURL = summary.AvatarFull
	player.ProfileURL = summary.ProfileURL
	player.ProfileState = &summary.ProfileState
	player.VisibilityState = &summary.CommunityVisibilityState
	if summary.TimeCreated > 0 {
		created := time.Unix(summary.TimeCreated, 0).UTC()
		player.AccountCreated = &created
	}
	if summary.LastLogoff > 0 {
		logoff := time.Unix(summary.LastLogoff, 0).UTC()
		player.LastLogoff = &logoff
	}
	player.ProfileUpdatedAt = &now

	// Ban state rides along with every profile refresh.
	if bans, err := s.steam.GetPlayerBans(ctx, []string{steamID}); err != nil {
		s.logger.Warn().Err(err).Str("steam_id", steamID).Msg("ban fetch failed during refresh")
	} else if len(bans.Players) > 0 {
		if err := s.players.UpsertBan(ctx, banToDomain(bans.Players[0], now)); err != nil {
			s.logger.Warn().Err(err).Str("steam_id", steamID).Msg("failed to store ban state")
		}
	}

	// Owned games fail with 403 for private profiles; that absence is
	// itself a scoring input, so it is not an error here.
	if games, err := s.steam.GetOwnedGames(ctx, steamID); err != nil {
		s.logger.Debug().Err(err).Str("steam_id", steamID).Msg("owned games unavailable")
	} else {
		count := games.Response.GameCount
		player.TotalGamesOwned = &count
		if hours, ok := api.CS2Hours(games); ok {
			player.CS2Hours = &hours
		}
		player.StatsUpdatedAt = &now
	}

	if err := s.players.Upsert(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("steam_id", steamID).Msg("player profile refreshed")
	return player, nil
}

// RefreshOutdatedBans re-checks ban state for players whose ban row is
// missing or older than the refresh age, in Steam-sized batches.
// Returns how many players were refreshed.
func (s *ProfileService) RefreshOutdatedBans(ctx context.Context, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-constants.BanRefreshAge)
	ids, err := s.players.ListStaleBans(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bans: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	refreshed := 0
	now := time.Now().UTC()
	for start := 0; start < len(ids); start += constants.SteamIDBatchLimit {
		end := min(start+constants.SteamIDBatchLimit, len(ids))
		batch := ids[start:end]

		resp, err := s.steam.GetPlayerBans(ctx, batch)
		if err != nil {
			return refreshed, fmt.Errorf("failed to fetch bans: %w", err)
		}
		for _, entry := range resp.Players {
			if err := s.players.UpsertBan(ctx, banToDomain(entry, now)); err != nil {
				s.logger.Warn().Err(err).Str("steam_id", entry.SteamID).Msg("failed to store ban state")
				continue
			}
			refreshed++
		}
	}

	s.logger.Info().Int("refreshed", refreshed).Msg("ban refresh finished")
	return refreshed, nil
}

func banToDomain(entry api.PlayerBanEntry, now time.Time) *domain.PlayerBan {
	return &domain.PlayerBan{
		SteamID:          entry.SteamID,
		CommunityBanned:  entry.CommunityBanned,
		VACBanned:        entry.VACBanned,
		NumVACBans:       entry.NumberOfVACBans,
		DaysSinceLastBan: entry.DaysSinceLastBan,
		NumGameBans:      entry.NumberOfGameBans,
		EconomyBan:       entry.EconomyBan,
		UpdatedAt:        now,
	}
}

func appendNameChange(history, name string, at time.Time) (string, error) {
	var changes []domain.NameChange
	if history != "" {
		if err := json.Unmarshal([]byte(history), &changes); err != nil {
			return "", err
		}
	}
	changes = append(changes, domain.NameChange{Name: name, ChangedAt: at})
	out, err := json.Marshal(changes)
	return string(out), err
}

func appendCountryChange(history, code string, at time.Time) (string, error) {
	var changes []domain.CountryChange
	if history != "" {
		if err := json.Unmarshal([]byte(history), &changes); err != nil {
			return "", err
		}
	}
	changes = append(changes, domain.CountryChange{Code: code, ChangedAt: at})
	out, err := json.Marshal(changes)
	return string(out), err
}
