package database

import (
	"embed"
	"fmt"

	"github.com/meinjens/cstatsentry/internal/config"
	"github.com/meinjens/cstatsentry/internal/constants"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func New(cfg *config.Config, logger zerolog.Logger) (*sqlx.DB, error) {
	logger.Info().Str("path", cfg.DBPath).Msg("connecting to database")

	db, err := sqlx.Open("sqlite3", DSN(cfg.DBPath))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := optimizeSQLite(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to optimize SQLite")
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}
	if err := Migrate(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established and optimized")
	return db, nil
}

// Migrate applies the embedded goose migrations. Exposed so test
// fixtures can run the real schema against in-memory databases.
func Migrate(db *sqlx.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}

// DSN encodes the connection-scoped pragmas in the data source name
// so every pooled connection carries them, not only the one that
// happened to run a PRAGMA statement. Concurrent merge transactions
// rely on busy_timeout and foreign_keys holding everywhere.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
}

// optimizeSQLite applies the remaining tuning pragmas. These are
// performance hints only; a pooled connection that misses them still
// behaves correctly.
func optimizeSQLite(db *sqlx.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"cache_size", "-64000"},
		{"temp_store", "MEMORY"},
		{"mmap_size", "268435456"}, // memory map 256MB for better performance https://sqlite.org/mmap.html
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := db.Exec(query); err != nil {
			logger.Warn().
				Err(err).
				Str("pragma", pragma.name).
				Str("value", pragma.value).
				Msg("failed to set pragma")
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug().
			Str("pragma", pragma.name).
			Str("value", pragma.value).
			Msg("SQLite pragma set")
	}

	return nil
}
