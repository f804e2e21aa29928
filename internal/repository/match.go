package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewMatchRepository(db *sqlx.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: db, logger: logger}
}

// MergeRecord is one normalized session staged for merging.
type MergeRecord struct {
	Match   domain.Match
	Players []domain.MatchPlayer
}

// MergeStats summarizes what one batch changed in the store.
type MergeStats struct {
	Created  int
	Enriched int
}

// MergeBatch folds one provider's normalized batch into the store in
// a single transaction: match upsert with enrich-not-clobber
// semantics, provenance union, user ownership link, player rows and
// stubs, teammate recompute, and finally the cursor advance. The
// cursor moves in the same transaction as the data it covers, so a
// crash mid-run re-fetches instead of silently skipping.
func (r *MatchRepository) MergeBatch(ctx context.Context, user *domain.User, providerName string, records []MergeRecord, cursor string) (MergeStats, error) {
	var stats MergeStats

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	for _, rec := range records {
		created, enriched, err := r.mergeMatch(ctx, tx, rec.Match, now)
		if err != nil {
			return stats, fmt.Errorf("failed to merge match %s: %w", rec.Match.MatchID, err)
		}
		if created {
			stats.Created++
		} else if enriched {
			stats.Enriched++
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO match_provenance (match_id, provider) VALUES (?, ?)`,
			rec.Match.MatchID, providerName); err != nil {
			return stats, fmt.Errorf("failed to record provenance for %s: %w", rec.Match.MatchID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_matches (user_id, match_id) VALUES (?, ?)`,
			user.UserID, rec.Match.MatchID); err != nil {
			return stats, fmt.Errorf("failed to link match %s to user: %w", rec.Match.MatchID, err)
		}

		for _, mp := range rec.Players {
			if err := r.mergeMatchPlayer(ctx, tx, mp, now); err != nil {
				return stats, fmt.Errorf("failed to merge player %s in match %s: %w", mp.SteamID, mp.MatchID, err)
			}
		}
	}

	if err := r.recomputeTeammates(ctx, tx, user, now); err != nil {
		return stats, fmt.Errorf("failed to recompute teammates: %w", err)
	}

	if cursor != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_cursors (user_id, provider, cursor, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, provider) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
			user.UserID, providerName, cursor, now); err != nil {
			return stats, fmt.Errorf("failed to advance cursor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit merge batch: %w", err)
	}

	r.logger.Debug().
		Str("user_id", user.UserID).
		Str("provider", providerName).
		Int("records", len(records)).
		Int("created", stats.Created).
		Int("enriched", stats.Enriched).
		Str("cursor", cursor).
		Msg("merge batch committed")

	return stats, nil
}

func (r *MatchRepository) mergeMatch(ctx context.Context, tx *sqlx.Tx, incoming domain.Match, now time.Time) (created, enriched bool, err error) {
	incoming.CreatedAt = now
	incoming.UpdatedAt = now

	res, err := tx.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO matches (match_id, share_code, map_name, match_date, score_team1, score_team2, winning_team, demo_url, game_type, source_priority, processed, created_at, updated_at)
		VALUES (:match_id, :share_code, :map_name, :match_date, :score_team1, :score_team2, :winning_team, :demo_url, :game_type, :source_priority, :processed, :created_at, :updated_at)`,
		incoming)
	if err != nil {
		return false, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, false, nil
	}

	// Row exists: merge under the primary-key constraint inside the
	// open transaction.
	var existing domain.Match
	if err := tx.GetContext(ctx, &existing, `SELECT * FROM matches WHERE match_id = ?`, incoming.MatchID); err != nil {
		return false, false, err
	}

	merged, changed := domain.MergeMatch(existing, incoming)
	if !changed {
		return false, false, nil
	}

	merged.UpdatedAt = now
	_, err = tx.NamedExecContext(ctx, `
		UPDATE matches SET
			share_code = :share_code,
			map_name = :map_name,
			match_date = :match_date,
			score_team1 = :score_team1,
			score_team2 = :score_team2,
			winning_team = :winning_team,
			demo_url = :demo_url,
			game_type = :game_type,
			source_priority = :source_priority,
			updated_at = :updated_at
		WHERE match_id = :match_id`, merged)
	return false, true, err
}

func (r *MatchRepository) mergeMatchPlayer(ctx context.Context, tx *sqlx.Tx, incoming domain.MatchPlayer, now time.Time) error {
	// Every seen steam identity gets a player stub so the profile
	// refresh and the scoring engine have a row to hang data on.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (steam_id, current_name, created_at) VALUES (?, ?, ?)`,
		incoming.SteamID, incoming.Name, now); err != nil {
		return err
	}

	incoming.CreatedAt = now
	incoming.UpdatedAt = now

	res, err := tx.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO match_players (match_id, steam_id, name, team, kills, deaths, assists, score, headshots, headshot_pct, adr, rating, mvps, source_priority, created_at, updated_at)
		VALUES (:match_id, :steam_id, :name, :team, :kills, :deaths, :assists, :score, :headshots, :headshot_pct, :adr, :rating, :mvps, :source_priority, :created_at, :updated_at)`,
		incoming)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var existing domain.MatchPlayer
	if err := tx.GetContext(ctx, &existing,
		`SELECT * FROM match_players WHERE match_id = ? AND steam_id = ?`,
		incoming.MatchID, incoming.SteamID); err != nil {
		return err
	}

	merged, changed := domain.MergeMatchPlayer(existing, incoming)
	if !changed {
		return nil
	}

	merged.UpdatedAt = now
	_, err = tx.NamedExecContext(ctx, `
		UPDATE match_players SET
			name = :name,
			team = :team,
			kills = :kills,
			deaths = :deaths,
			assists = :assists,
			score = :score,
			headshots = :headshots,
			headshot_pct = :headshot_pct,
			adr = :adr,
			rating = :rating,
			mvps = :mvps,
			source_priority = :source_priority,
			updated_at = :updated_at
		WHERE match_id = :match_id AND steam_id = :steam_id`, merged)
	return err
}

// recomputeTeammates rebuilds the user's teammate aggregate from
// scratch instead of incrementing counters, so replayed batches stay
// idempotent.
func (r *MatchRepository) recomputeTeammates(ctx context.Context, tx *sqlx.Tx, user *domain.User, now time.Time) error {
	if user.SteamID == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_teammates WHERE user_id = ?`, user.UserID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_teammates (user_id, player_steam_id, matches_together, first_seen, last_seen)
		SELECT um.user_id, mp2.steam_id, COUNT(*), MIN(m.match_date), MAX(m.match_date)
		FROM user_matches um
		JOIN matches m ON m.match_id = um.match_id
		JOIN match_players mp1 ON mp1.match_id = um.match_id AND mp1.steam_id = ? AND mp1.team != 0
		JOIN match_players mp2 ON mp2.match_id = um.match_id AND mp2.team = mp1.team AND mp2.steam_id != mp1.steam_id
		WHERE um.user_id = ?
		GROUP BY um.user_id, mp2.steam_id`,
		user.SteamID, user.UserID)
	return err
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	var match domain.Match
	if err := r.db.GetContext(ctx, &match, `SELECT * FROM matches WHERE match_id = ?`, matchID); err != nil {
		return nil, notFound(err)
	}
	return &match, nil
}

func (r *MatchRepository) GetPlayers(ctx context.Context, matchID string) ([]domain.MatchPlayer, error) {
	var players []domain.MatchPlayer
	err := r.db.SelectContext(ctx, &players,
		`SELECT * FROM match_players WHERE match_id = ? ORDER BY team, steam_id`, matchID)
	return players, err
}

// GetProvenance returns the providers that confirmed a match.
func (r *MatchRepository) GetProvenance(ctx context.Context, matchID string) ([]string, error) {
	var providers []string
	err := r.db.SelectContext(ctx, &providers,
		`SELECT provider FROM match_provenance WHERE match_id = ? ORDER BY provider`, matchID)
	return providers, err
}

func (r *MatchRepository) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Match, error) {
	var matches []domain.Match
	err := r.db.SelectContext(ctx, &matches, `
		SELECT m.* FROM matches m
		JOIN user_matches um ON um.match_id = m.match_id
		WHERE um.user_id = ?
		ORDER BY m.match_date DESC, m.match_id DESC
		LIMIT ?`, userID, limit)
	return matches, err
}

func (r *MatchRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_matches WHERE user_id = ?`, userID)
	return count, err
}

// PlayerMatchStat is one player line joined with the match date, the
// shape the scoring engine aggregates over.
type PlayerMatchStat struct {
	domain.MatchPlayer
	MatchDate time.Time `db:"match_date"`
}

// PlayerHistory returns the player's lines ordered oldest to newest.
// Matches without a usable date (stats pending demo processing) are
// excluded, since the statistical windows are time-ordered.
func (r *MatchRepository) PlayerHistory(ctx context.Context, steamID string) ([]PlayerMatchStat, error) {
	var stats []PlayerMatchStat
	err := r.db.SelectContext(ctx, &stats, `
		SELECT mp.*, m.match_date FROM match_players mp
		JOIN matches m ON m.match_id = mp.match_id
		WHERE mp.steam_id = ? AND m.match_date > ?
		ORDER BY m.match_date ASC, mp.match_id ASC`,
		steamID, time.Time{})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return stats, nil
}

func (r *MatchRepository) ListTeammates(ctx context.Context, userID string) ([]domain.Teammate, error) {
	var teammates []domain.Teammate
	err := r.db.SelectContext(ctx, &teammates,
		`SELECT * FROM user_teammates WHERE user_id = ? ORDER BY matches_together DESC, player_steam_id`, userID)
	return teammates, err
}
