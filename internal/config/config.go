package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	SteamAPIKey   string
	SteamAPIURL   string
	LeetifyAPIURL string
	LeetifyAPIKey string
	DBPath        string
	ServerPort    string
	LogLevel      string
	SyncInterval  time.Duration
	BanInterval   time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		SteamAPIKey:   getEnv("STEAM_API_KEY", ""),
		SteamAPIURL:   getEnv("STEAM_API_URL", "https://api.steampowered.com"),
		LeetifyAPIURL: getEnv("LEETIFY_API_URL", "https://api.leetify.com"),
		LeetifyAPIKey: getEnv("LEETIFY_API_KEY", ""),
		DBPath:        getEnv("DB_PATH", "cstatsentry.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
		BanInterval:   getEnvDuration("BAN_REFRESH_INTERVAL", 24*time.Hour),
	}

	if cfg.SteamAPIKey == "" {
		return nil, fmt.Errorf("STEAM_API_KEY is required")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("leetify_api_url", cfg.LeetifyAPIURL).
		Dur("sync_interval", cfg.SyncInterval).
		Dur("ban_refresh_interval", cfg.BanInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
