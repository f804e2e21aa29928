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

type SyncRunRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewSyncRunRepository(db *sqlx.DB, logger zerolog.Logger) *SyncRunRepository {
	return &SyncRunRepository{db: db, logger: logger}
}

type syncRunRow struct {
	RunID      string     `db:"run_id"`
	UserID     string     `db:"user_id"`
	Status     string     `db:"status"`
	Providers  string     `db:"providers"`
	Error      string     `db:"error"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

func (r *SyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	row, err := toRow(run)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO sync_runs (run_id, user_id, status, providers, error, started_at, finished_at)
		VALUES (:run_id, :user_id, :status, :providers, :error, :started_at, :finished_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to create sync run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *SyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	row, err := toRow(run)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		UPDATE sync_runs SET status = :status, providers = :providers, error = :error, finished_at = :finished_at
		WHERE run_id = :run_id`, row)
	if err != nil {
		return fmt.Errorf("failed to update sync run %s: %w", run.RunID, err)
	}
	return nil
}

// GetLatest returns the user's most recent run, ErrNotFound when the
// user has never synced.
func (r *SyncRunRepository) GetLatest(ctx context.Context, userID string) (*domain.SyncRun, error) {
	var row syncRunRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM sync_runs WHERE user_id = ?
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1`, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

// HasActiveRun reports whether the user's latest run is still running
// and not stale. Store-side guard behind the in-process run lock, so
// multiple orchestrator workers can coexist.
func (r *SyncRunRepository) HasActiveRun(ctx context.Context, userID string, staleAfter time.Duration) (bool, error) {
	latest, err := r.GetLatest(ctx, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if latest.Status != domain.RunRunning && latest.Status != domain.RunQueued {
		return false, nil
	}
	if time.Since(latest.StartedAt) > staleAfter {
		r.logger.Warn().
			Str("run_id", latest.RunID).
			Str("user_id", userID).
			Time("started_at", latest.StartedAt).
			Msg("ignoring stale running sync run")
		return false, nil
	}
	return true, nil
}

func toRow(run *domain.SyncRun) (*syncRunRow, error) {
	providers, err := json.Marshal(run.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider results: %w", err)
	}
	return &syncRunRow{
		RunID:      run.RunID,
		UserID:     run.UserID,
		Status:     run.Status,
		Providers:  string(providers),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}, nil
}

func (row syncRunRow) toDomain() (*domain.SyncRun, error) {
	var providers map[string]domain.ProviderResult
	if err := json.Unmarshal([]byte(row.Providers), &providers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider results for %s: %w", row.RunID, err)
	}
	return &domain.SyncRun{
		RunID:      row.RunID,
		UserID:     row.UserID,
		Status:     row.Status,
		Providers:  providers,
		Error:      row.Error,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}, nil
}
