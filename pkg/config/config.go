package config

import (
	"os"
	"time"

	"tourist-overwatch/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const defaultJWTSecret = "overwatch-dev-secret"

type Config struct {
	Port         string
	DBPath       string
	NATSPort     int
	NATSDataDir  string
	DatasetPath  string
	PredictDelay time.Duration
	JWTSecret    string
	JWTTTL       time.Duration
	Log          logger.LogConfig

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) *Config {
	loaded := godotenv.Load(files...) == nil

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./db/overwatch.db"),
		NATSPort:     getInt("NATS_PORT", 4222),
		NATSDataDir:  getEnv("NATS_DATA_DIR", "./data/nats"),
		DatasetPath:  getEnv("DATASET_PATH", "simulation_paths.csv"),
		PredictDelay: time.Duration(getInt("PREDICT_DELAY_MS", 100)) * time.Millisecond,
		JWTSecret:    getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:       time.Duration(getInt("JWT_TTL_HOURS", 24)) * time.Hour,
		Log: logger.LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			Filename:   os.Getenv("LOG_FILENAME"),
			MaxSize:    getInt("LOG_MAX_SIZE", 100),
			MaxAge:     getInt("LOG_MAX_AGE", 7),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 3),
		},
		EnvFileLoaded: loaded,
	}
}

// UsingDefaultSecret is true when JWT_SECRET was not configured.
func (c *Config) UsingDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
