// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	Storage     string
	PostgresDSN string

	RedisAddr             string
	RedisQueueKey         string
	RedisProcessingKey    string
	RedisProcessingMapKey string
	Workers               int
	DocumentStaleAfter    time.Duration

	GCSBucket          string
	GCSCredentialsJSON string

	PubSubProjectID       string
	PubSubTopic           string
	PubSubCredentialsJSON string

	JobLockTTL        time.Duration
	DraftTTL          time.Duration
	ReferenceCacheTTL time.Duration
	PhoneRegion       string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// a missing .env is normal outside local runs
	_ = godotenv.Load()

	processingKey := envOr("REDIS_PROCESSING_KEY", "documents:processing")
	c := Config{
		HTTPAddr:              envOr("HTTP_ADDR", ":8080"),
		LogLevel:              envOr("LOG_LEVEL", "info"),
		Storage:               envOr("STORAGE", StoragePostgres),
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisQueueKey:         envOr("REDIS_QUEUE_KEY", "documents:queue"),
		RedisProcessingKey:    processingKey,
		RedisProcessingMapKey: envOr("REDIS_PROCESSING_MAP_KEY", processingKey+":map"),
		Workers:               envIntOr("WORKERS", 4),
		DocumentStaleAfter:    envSecondsOr("DOCUMENT_STALE_AFTER_SECONDS", 300),
		GCSBucket:             os.Getenv("GCS_BUCKET"),
		GCSCredentialsJSON:    os.Getenv("GCS_CREDENTIALS_JSON"),
		PubSubProjectID:       firstEnv("PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		PubSubTopic:           os.Getenv("PUBSUB_TOPIC"),
		PubSubCredentialsJSON: firstEnv("PUBSUB_CREDENTIALS_JSON", "GCS_CREDENTIALS_JSON"),
		JobLockTTL:            envSecondsOr("JOB_LOCK_TTL_SECONDS", 30),
		DraftTTL:              envSecondsOr("DRAFT_TTL_SECONDS", 86400),
		ReferenceCacheTTL:     envSecondsOr("REFERENCE_CACHE_TTL_SECONDS", 600),
		PhoneRegion:           envOr("PHONE_REGION", "GB"),
	}

	switch c.Storage {
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return c, errors.New("missing env: POSTGRES_DSN")
		}
	case StorageMemory:
	default:
		return c, errors.New("STORAGE must be postgres or memory")
	}
	return c, nil
}

// RedactedDSN is safe to log.
func (c Config) RedactedDSN() string {
	return RedactDSN(c.PostgresDSN)
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password in user:pass@ URLs and leaves others alone.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envSecondsOr(key string, def int) time.Duration {
	return time.Duration(envIntOr(key, def)) * time.Second
}
