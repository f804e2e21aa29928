package repository

import (
	"context"
	"testing"
	"time"

	"github.com/meinjens/cstatsentry/internal/database"
	"github.com/meinjens/cstatsentry/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testDB opens an in-memory database with the real migrations applied.
// A single connection keeps the memory database alive and serialized.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, userID, steamID string) *domain.User {
	t.Helper()

	now := time.Now().UTC()
	user := &domain.User{
		UserID:      userID,
		SteamID:     steamID,
		SyncEnabled: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, NewUserRepository(db, zerolog.Nop()).Upsert(context.Background(), user))
	return user
}
