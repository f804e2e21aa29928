package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// AnalysisRepository persists scoring snapshots. Insert-only: rows
// are the audit trail and are never updated or deleted.
type AnalysisRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewAnalysisRepository(db *sqlx.DB, logger zerolog.Logger) *AnalysisRepository {
	return &AnalysisRepository{db: db, logger: logger}
}

type analysisRow struct {
	AnalysisID string    `db:"analysis_id"`
	SteamID    string    `db:"steam_id"`
	Score      int       `db:"score"`
	Flags      string    `db:"flags"`
	Confidence float64   `db:"confidence"`
	Version    string    `db:"version"`
	Notes      string    `db:"notes"`
	AnalyzedAt time.Time `db:"analyzed_at"`
}

func (r *AnalysisRepository) Insert(ctx context.Context, analysis *domain.PlayerAnalysis) error {
	flags, err := json.Marshal(analysis.Flags)
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO player_analyses (analysis_id, steam_id, score, flags, confidence, version, notes, analyzed_at)
		VALUES (:analysis_id, :steam_id, :score, :flags, :confidence, :version, :notes, :analyzed_at)`,
		analysisRow{
			AnalysisID: analysis.AnalysisID,
			SteamID:    analysis.SteamID,
			Score:      analysis.Score,
			Flags:      string(flags),
			Confidence: analysis.Confidence,
			Version:    analysis.Version,
			Notes:      analysis.Notes,
			AnalyzedAt: analysis.AnalyzedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", analysis.AnalysisID, err)
	}
	return nil
}

// ListBySteamID returns snapshots newest first.
func (r *AnalysisRepository) ListBySteamID(ctx context.Context, steamID string, limit int) ([]domain.PlayerAnalysis, error) {
	var rows []analysisRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM player_analyses WHERE steam_id = ?
		ORDER BY analyzed_at DESC, analysis_id DESC
		LIMIT ?`, steamID, limit)
	if err != nil {
		return nil, err
	}

	analyses := make([]domain.PlayerAnalysis, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, nil
}

// Latest returns the most recent snapshot for a player.
func (r *AnalysisRepository) Latest(ctx context.Context, steamID string) (*domain.PlayerAnalysis, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM player_analyses WHERE steam_id = ?
		ORDER BY analyzed_at DESC, analysis_id DESC
		LIMIT 1`, steamID)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (row analysisRow) toDomain() (*domain.PlayerAnalysis, error) {
	var flags map[string]domain.AnalysisFlag
	if err := json.Unmarshal([]byte(row.Flags), &flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags for %s: %w", row.AnalysisID, err)
	}
	return &domain.PlayerAnalysis{
		AnalysisID: row.AnalysisID,
		SteamID:    row.SteamID,
		Score:      row.Score,
		Flags:      flags,
		Confidence: row.Confidence,
		Version:    row.Version,
		Notes:      row.Notes,
		AnalyzedAt: row.AnalyzedAt,
	}, nil
}
