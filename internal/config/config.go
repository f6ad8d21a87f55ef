package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting for the service. It is loaded once at
// process start and passed explicitly into the components that need it.
type Config struct {
	ListenAddr  string
	DatabaseDSN string
	RedisAddr   string

	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	RateMaxAttempts int
	RateWindow      time.Duration

	ResetTokenTTL time.Duration
	PhoneCodeTTL  time.Duration

	KafkaBroker string
	KafkaTopic  string
}

// Load reads configuration from the environment, overlaying a .env file when
// one exists in the working directory. Secrets have no defaults on purpose.
func Load() (Config, error) {
	if os.Getenv("ENV") != "prod" {
		_ = godotenv.Load()
	}

	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":3000"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		AccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		Issuer:          getEnv("JWT_ISSUER", "fixrx-api"),
		Audience:        getEnv("JWT_AUDIENCE", "fixrx-app"),
		AccessTTL:       getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:      getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RateMaxAttempts: getInt("RATE_MAX_ATTEMPTS", 5),
		RateWindow:      getDuration("RATE_WINDOW", 15*time.Minute),
		ResetTokenTTL:   getDuration("RESET_TOKEN_TTL", time.Hour),
		PhoneCodeTTL:    getDuration("PHONE_CODE_TTL", 10*time.Minute),
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "fixrx.notifications"),
	}

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("access and refresh secrets must differ")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
