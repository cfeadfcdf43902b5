package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	DBPath            string
	ServerPort        string
	LogLevel          string
	BoostConfigPath   string
	LifecycleConfPath string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:            getEnv("DB_PATH", "cosplayradar.db"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		BoostConfigPath:   getEnv("BOOST_CONFIG_PATH", "config/trending_config.json"),
		LifecycleConfPath: getEnv("LIFECYCLE_CONFIG_PATH", "config/lifecycle_config.json"),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("boost_config", cfg.BoostConfigPath).
		Str("lifecycle_config", cfg.LifecycleConfPath).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
