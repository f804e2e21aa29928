package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type UserRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func NewUserRepository(db *sqlx.DB, logger zerolog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) GetBySteamID(ctx context.Context, steamID string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE steam_id = ?`, steamID)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (user_id, steam_id, steam_name, avatar_url, auth_code, last_share_code, sync_enabled, last_sync_at, created_at, updated_at)
		VALUES (:user_id, :steam_id, :steam_name, :avatar_url, :auth_code, :last_share_code, :sync_enabled, :last_sync_at, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			steam_name = excluded.steam_name,
			avatar_url = excluded.avatar_url,
			auth_code = excluded.auth_code,
			last_share_code = excluded.last_share_code,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at`, user)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.UserID, err)
	}
	return nil
}

func (r *UserRepository) ListSyncEnabled(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.db.SelectContext(ctx, &users, `SELECT * FROM users WHERE sync_enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) SetLastSync(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_sync_at = ?, updated_at = ? WHERE user_id = ?`, at, time.Now().UTC(), userID)
	return err
}

// GetCursor returns the stored per-provider cursor, "" when the user
// has never synced that provider.
func (r *UserRepository) GetCursor(ctx context.Context, userID, providerName string) (string, error) {
	var cursor string
	err := r.db.GetContext(ctx, &cursor, `SELECT cursor FROM sync_cursors WHERE user_id = ? AND provider = ?`, userID, providerName)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return cursor, nil
}
