package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewPlayerRepository(db *sqlx.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

func (r *PlayerRepository) Get(ctx context.Context, steamID string) (*domain.Player, error) {
	var player domain.Player
	if err := r.db.GetContext(ctx, &player, `SELECT * FROM players WHERE steam_id = ?`, steamID); err != nil {
		return nil, notFound(err)
	}
	return &player, nil
}

func (r *PlayerRepository) Upsert(ctx context.Context, player *domain.Player) error {
	if player.CreatedAt.IsZero() {
		player.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO players (steam_id, current_name, name_history, avatar_url, profile_url, account_created, last_logoff, profile_state, visibility_state, country_code, country_history, cs2_hours, total_games_owned, profile_updated_at, stats_updated_at, created_at)
		VALUES (:steam_id, :current_name, :name_history, :avatar_url, :profile_url, :account_created, :last_logoff, :profile_state, :visibility_state, :country_code, :country_history, :cs2_hours, :total_games_owned, :profile_updated_at, :stats_updated_at, :created_at)
		ON CONFLICT (steam_id) DO UPDATE SET
			current_name = excluded.current_name,
			name_history = excluded.name_history,
			avatar_url = excluded.avatar_url,
			profile_url = excluded.profile_url,
			account_created = excluded.account_created,
			last_logoff = excluded.last_logoff,
			profile_state = excluded.profile_state,
			visibility_state = excluded.visibility_state,
			country_code = excluded.country_code,
			country_history = excluded.country_history,
			cs2_hours = COALESCE(excluded.cs2_hours, players.cs2_hours),
			total_games_owned = COALESCE(excluded.total_games_owned, players.total_games_owned),
			profile_updated_at = excluded.profile_updated_at,
			stats_updated_at = COALESCE(excluded.stats_updated_at, players.stats_updated_at)`,
		player)
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.SteamID, err)
	}
	return nil
}

func (r *PlayerRepository) UpsertBan(ctx context.Context, ban *domain.PlayerBan) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO player_bans (steam_id, community_banned, vac_banned, num_vac_bans, days_since_last_ban, num_game_bans, economy_ban, updated_at)
		VALUES (:steam_id, :community_banned, :vac_banned, :num_vac_bans, :days_since_last_ban, :num_game_bans, :economy_ban, :updated_at)
		ON CONFLICT (steam_id) DO UPDATE SET
			community_banned = excluded.community_banned,
			vac_banned = excluded.vac_banned,
			num_vac_bans = excluded.num_vac_bans,
			days_since_last_ban = excluded.days_since_last_ban,
			num_game_bans = excluded.num_game_bans,
			economy_ban = excluded.economy_ban,
			updated_at = excluded.updated_at`,
		ban)
	if err != nil {
		return fmt.Errorf("failed to upsert ban for %s: %w", ban.SteamID, err)
	}
	return nil
}

func (r *PlayerRepository) GetBan(ctx context.Context, steamID string) (*domain.PlayerBan, error) {
	var ban domain.PlayerBan
	if err := r.db.GetContext(ctx, &ban, `SELECT * FROM player_bans WHERE steam_id = ?`, steamID); err != nil {
		return nil, notFound(err)
	}
	return &ban, nil
}

// ListStaleBans returns steam ids whose ban row is older than cutoff
// or missing entirely, for the periodic ban refresh.
func (r *PlayerRepository) ListStaleBans(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT p.steam_id FROM players p
		LEFT JOIN player_bans b ON b.steam_id = p.steam_id
		WHERE b.steam_id IS NULL OR b.updated_at < ?
		ORDER BY p.steam_id
		LIMIT ?`, cutoff, limit)
	return ids, err
}
