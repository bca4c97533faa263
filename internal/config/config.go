package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// データベース接続設定
	DBDriver   string `yaml:"db_driver"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPath     string `yaml:"db_path"`
	DBURL      string `yaml:"db_url"`

	// サーバー設定
	ServerPort string `yaml:"server_port"`
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"log_level"`

	// CORS設定
	AllowedOrigins []string `yaml:"allowed_origins"`

	// 認証設定
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// プロフィールキャッシュ (REDIS_URL が空なら無効)
	RedisURL        string        `yaml:"redis_url"`
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl"`

	// 0 のときタイピング表示の自動停止は行わない
	TypingTimeout time.Duration `yaml:"typing_timeout"`
}

// Load loads configuration from environment variables
func Load() Config {
	dbDriver := os.Getenv("DB_DRIVER")
	if dbDriver == "" {
		dbDriver = "mysql"
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "3306"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/careportal.db"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	cfg := Config{
		DBDriver:        dbDriver,
		DBHost:          dbHost,
		DBPort:          dbPort,
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		DBPath:          dbPath,
		DBURL:           strings.TrimSpace(os.Getenv("DB_URL")),
		ServerPort:      serverPort,
		Env:             env,
		LogLevel:        logLevel,
		AllowedOrigins:  splitOrigins(allowedOrigins),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		ProfileCacheTTL: durationEnv("PROFILE_CACHE_TTL", 5*time.Minute),
		TypingTimeout:   durationEnv("TYPING_TIMEOUT", 0),
	}

	return cfg
}

// LoadFile overlays the YAML file at path on top of the environment configuration.
// Keys missing from the file keep their environment values.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "mysql", "sqlite3", "pgx":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver == "pgx" && c.DBURL == "" {
		return fmt.Errorf("config: DB_URL is required for the pgx driver")
	}
	return nil
}

func splitOrigins(s string) []string {
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
