// Package config loads runtime configuration from the environment, with an
// optional .env file, and validates it against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"

	"github.com/roach88/shiftguard/internal/remote"
)

//go:embed schema.cue
var schemaSource string

// Config holds the runtime configuration.
type Config struct {
	Env      string
	LogLevel string
	LogJSON  bool

	Remote remote.Options

	PollInterval time.Duration
	PushDebounce time.Duration

	HTTPAddr        string
	JWTIssuer       string
	JWTSigningKey   string
	SessionTTL      time.Duration
	RateLimitPerMin int

	OwnerAccessCode string
	AdminAccessCode string

	Timezone string
}

// Load returns configuration populated from environment variables with
// defaults, validated against the schema.
func Load() (Config, error) {
	cfg := Config{
		Env:      getEnv("APP_ENV", "dev"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogJSON:  boolEnv("LOG_JSON", false),
		Remote: remote.Options{
			Backend:              remote.Backend(getEnv("REMOTE_BACKEND", string(remote.BackendHTTP))),
			Table:                getEnv("REMOTE_TABLE", remote.DefaultTable),
			Key:                  getEnv("REMOTE_KEY", remote.DefaultKey),
			URL:                  strings.TrimRight(getEnv("REMOTE_URL", ""), "/"),
			APIKey:               getEnv("REMOTE_API_KEY", ""),
			Timeout:              durationEnv("REMOTE_TIMEOUT", 10*time.Second),
			RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:        getEnv("REDIS_PASSWORD", ""),
			RedisDB:              intEnv("REDIS_DB", 0),
			DatabaseURL:          getEnv("DATABASE_URL", ""),
			SQLitePath:           getEnv("SQLITE_PATH", "shiftguard.db"),
			FirestoreProject:     getEnv("FIRESTORE_PROJECT", ""),
			FirestoreCredentials: getEnv("FIRESTORE_CREDENTIALS", ""),
		},
		PollInterval:    durationEnv("POLL_INTERVAL", 7*time.Second),
		PushDebounce:    durationEnv("PUSH_DEBOUNCE", time.Second),
		HTTPAddr:        getEnv("HTTP_ADDR", "127.0.0.1:8090"),
		JWTIssuer:       getEnv("JWT_ISSUER", "shiftguard"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		SessionTTL:      durationEnv("SESSION_TTL", 12*time.Hour),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
		OwnerAccessCode: getEnv("OWNER_ACCESS_CODE", ""),
		AdminAccessCode: getEnv("ADMIN_ACCESS_CODE", ""),
		Timezone:        getEnv("TIMEZONE", "UTC"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from path without overriding ones already
// set. A missing file is not an error when optional is true.
func LoadEnvFile(path string, optional bool) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			slog.Debug("no env file found, using process environment", "path", path)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// view is the shape the schema validates.
type view struct {
	Env                  string `json:"env"`
	LogLevel             string `json:"logLevel"`
	Backend              string `json:"backend"`
	Table                string `json:"table"`
	Key                  string `json:"key"`
	URL                  string `json:"url"`
	APIKey               string `json:"apiKey"`
	RedisAddr            string `json:"redisAddr"`
	RedisDB              int    `json:"redisDB"`
	DatabaseURL          string `json:"databaseURL"`
	SQLitePath           string `json:"sqlitePath"`
	FirestoreProject     string `json:"firestoreProject"`
	FirestoreCredentials string `json:"firestoreCredentials"`
	TimeoutMs            int64  `json:"timeoutMs"`
	PollIntervalMs       int64  `json:"pollIntervalMs"`
	PushDebounceMs       int64  `json:"pushDebounceMs"`
	HTTPAddr             string `json:"httpAddr"`
	JWTIssuer            string `json:"jwtIssuer"`
	JWTSigningKey        string `json:"jwtSigningKey"`
	SessionTTLMs         int64  `json:"sessionTTLMs"`
	RateLimitPerMin      int    `json:"rateLimitPerMin"`
	Timezone             string `json:"timezone"`
}

func (c Config) view() view {
	return view{
		Env:                  c.Env,
		LogLevel:             c.LogLevel,
		Backend:              string(c.Remote.Backend),
		Table:                c.Remote.Table,
		Key:                  c.Remote.Key,
		URL:                  c.Remote.URL,
		APIKey:               c.Remote.APIKey,
		RedisAddr:            c.Remote.RedisAddr,
		RedisDB:              c.Remote.RedisDB,
		DatabaseURL:          c.Remote.DatabaseURL,
		SQLitePath:           c.Remote.SQLitePath,
		FirestoreProject:     c.Remote.FirestoreProject,
		FirestoreCredentials: c.Remote.FirestoreCredentials,
		TimeoutMs:            c.Remote.Timeout.Milliseconds(),
		PollIntervalMs:       c.PollInterval.Milliseconds(),
		PushDebounceMs:       c.PushDebounce.Milliseconds(),
		HTTPAddr:             c.HTTPAddr,
		JWTIssuer:            c.JWTIssuer,
		JWTSigningKey:        c.JWTSigningKey,
		SessionTTLMs:         c.SessionTTL.Milliseconds(),
		RateLimitPerMin:      c.RateLimitPerMin,
		Timezone:             c.Timezone,
	}
}

// Validate checks c against the embedded schema and that the timezone
// resolves.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	unified := def.Unify(ctx.Encode(c.view()))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{Details: cueerrors.Details(err, nil)}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &Error{Details: fmt.Sprintf("timezone: %v", err)}
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Error reports a configuration that failed validation.
type Error struct {
	Details string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.TrimSpace(e.Details)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err == nil {
			return parsed
		}
		slog.Warn("invalid bool, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err == nil {
			return parsed
		}
		slog.Warn("invalid int, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}
