// Package config loads Flodgatt's runtime configuration from process
// environment (plus an optional .env/.env.production file), built on
// viper's env binding for the exact variable names and defaults
// Mastodon's streaming server recognizes.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every environment-sourced setting Flodgatt needs at
// startup.
type Config struct {
	Bind   string
	Port   int
	Socket string

	Environment string // NODE_ENV / RUST_ENV
	LogLevel    string // RUST_LOG

	WhitelistMode bool

	DB    DBConfig
	Redis RedisConfig

	RedisFreq time.Duration // poll interval, REDIS_FREQ
	SSEFreq   time.Duration
	WSFreq    time.Duration

	JWTSecret string

	// EnvFile is the .env/.env.production path Load() read, kept around
	// so WatchLogLevel can re-read it on change.
	EnvFile string
}

// DBConfig mirrors authstore.Config's fields so main can build one
// directly; kept separate to avoid internal/config importing authstore.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig mirrors redisconn.Config's connection fields.
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	Namespace string
}

// Load reads configuration from the environment. A `.env.production`
// file is loaded when NODE_ENV/RUST_ENV resolve to "production", else
// `.env`; either is optional and silently skipped if absent, matching
// Mastodon's streaming server's env-file convention.
func Load() (*Config, error) {
	env := firstNonEmpty(os.Getenv("NODE_ENV"), os.Getenv("RUST_ENV"))
	envFile := ".env"
	if env == "production" {
		envFile = ".env.production"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", 4000)
	v.SetDefault("BIND", "0.0.0.0")
	v.SetDefault("REDIS_FREQ", 100)
	v.SetDefault("SSE_FREQ", 20000)
	v.SetDefault("WS_FREQ", 30000)
	v.SetDefault("RUST_LOG", "info")

	cfg := &Config{
		Bind:          v.GetString("BIND"),
		Port:          v.GetInt("PORT"),
		Socket:        v.GetString("SOCKET"),
		Environment:   firstNonEmpty(env, "development"),
		LogLevel:      v.GetString("RUST_LOG"),
		WhitelistMode: ParseBool(v.GetString("WHITELIST_MODE")),
		RedisFreq:     time.Duration(v.GetInt("REDIS_FREQ")) * time.Millisecond,
		SSEFreq:       time.Duration(v.GetInt("SSE_FREQ")) * time.Millisecond,
		WSFreq:        time.Duration(v.GetInt("WS_FREQ")) * time.Millisecond,
		JWTSecret:     v.GetString("ADMIN_JWT_SECRET"),
	}

	db, err := loadDB(v)
	if err != nil {
		return nil, err
	}
	cfg.DB = db

	redis, err := loadRedis(v)
	if err != nil {
		return nil, err
	}
	cfg.Redis = redis

	if cfg.Port <= 0 && cfg.Socket == "" {
		return nil, fmt.Errorf("config: one of PORT or SOCKET must be set")
	}
	cfg.EnvFile = envFile
	return cfg, nil
}

func loadDB(v *viper.Viper) (DBConfig, error) {
	if raw := v.GetString("DATABASE_URL"); raw != "" {
		return parseDatabaseURL(raw)
	}
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "require")
	return DBConfig{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetInt("DB_PORT"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASS"),
		Database: v.GetString("DB_NAME"),
		SSLMode:  v.GetString("DB_SSLMODE"),
	}, nil
}

func parseDatabaseURL(raw string) (DBConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DBConfig{}, fmt.Errorf("config: invalid DATABASE_URL: %w", err)
	}
	port := 5432
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	password, _ := u.User.Password()
	sslmode := "require"
	if m := u.Query().Get("sslmode"); m != "" {
		sslmode = m
	}
	return DBConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslmode,
	}, nil
}

func loadRedis(v *viper.Viper) (RedisConfig, error) {
	if raw := v.GetString("REDIS_URL"); raw != "" {
		rc, err := parseRedisURL(raw)
		if err != nil {
			return RedisConfig{}, fmt.Errorf("config: invalid REDIS_URL: %w", err)
		}
		rc.Namespace = v.GetString("REDIS_NAMESPACE")
		return rc, nil
	}
	v.SetDefault("REDIS_PORT", 6379)
	return RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		Namespace: v.GetString("REDIS_NAMESPACE"),
	}, nil
}

func parseRedisURL(raw string) (RedisConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RedisConfig{}, err
	}
	port := 6379
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	password, _ := u.User.Password()
	db := 0
	if d := strings.TrimPrefix(u.Path, "/"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			db = n
		}
	}
	return RedisConfig{Host: u.Hostname(), Port: port, Password: password, DB: db}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseBool converts common string representations to bool, with the
// same lenient matching used elsewhere for boolean env vars.
func ParseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	default:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n != 0
		}
	}
	return false
}
