// Package config reads process configuration from the environment. A local
// .env file, when present, is loaded first and never overrides variables
// that are already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	liststr "shebacred/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	WriteTimeout  time.Duration
	JWTSigningKey string
	JWTIssuer     string
	PublicBaseURL string
	Log           Log
	Postgres      Postgres
	Redis         RedisConfig
	Kafka         Kafka
	OCR           OCR
	Verification  Verification
}

type Log struct {
	Level  string
	Format string
}

type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the registry lookup cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// OCR configures the Cloud Vision recognizer. It is enabled when a
// credentials file is configured.
type OCR struct {
	CredentialsFile string
	MaxRetries      int
	MaxImageBytes   int64
	LanguageHints   []string
}

// Verification bounds batch fan-out and per-principal submission rate.
// A SubmitLimit of zero disables rate limiting.
type Verification struct {
	BatchMaxTexts    int
	BatchConcurrency int
	SubmitLimit      int
	SubmitWindow     time.Duration
}

// Load reads .env (if any) and then the environment.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Server{
		Addr:          envOr("SHEBA_ADDR", ":8080"),
		WriteTimeout:  durVar("SHEBA_WRITE_TIMEOUT", 60*time.Second),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:     envOr("JWT_ISSUER", "shebacred"),
		PublicBaseURL: strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		Log: Log{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		Postgres: Postgres{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intVar("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    intVar("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durVar("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intVar("REDIS_POOL_SIZE", 10),
			MinIdleConns: intVar("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durVar("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durVar("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durVar("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     durVar("REGISTRY_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers:    liststr.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			AuditTopic: envOr("AUDIT_TOPIC", "sheba.audit"),
		},
		OCR: OCR{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			MaxRetries:      intVar("OCR_MAX_RETRIES", 3),
			MaxImageBytes:   int64(intVar("OCR_MAX_IMAGE_BYTES", 10<<20)),
			LanguageHints:   liststr.DedupeAndTrimLower(strings.Split(envOr("OCR_LANGUAGE_HINTS", "en,am"), ",")),
		},
		Verification: Verification{
			BatchMaxTexts:    intVar("BATCH_MAX_TEXTS", 20),
			BatchConcurrency: intVar("BATCH_CONCURRENCY", 4),
			SubmitLimit:      intVar("SUBMIT_RATE_LIMIT", 60),
			SubmitWindow:     durVar("SUBMIT_RATE_WINDOW", time.Minute),
		},
	}
	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (s Server) UsesDevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func (s Server) OCREnabled() bool {
	return s.OCR.CredentialsFile != ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		return def, fmt.Errorf("%s must be a duration like 5m", key)
	}
	return v, nil
}
