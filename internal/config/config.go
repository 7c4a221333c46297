package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	ReceiverAddr  string
	PublicBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Job store backend: redis, postgres or mongo.
	JobStore      string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	// Artifact backend: local, supabase or minio.
	ArtifactStore string
	DataDir       string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioLocation  string
	MinioUseSSL    bool

	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration

	FetchTimeout    time.Duration
	FetchMaxBytes   int64
	CompressQuality int

	WorkerConcurrency int
	TaskTimeout       time.Duration
	TaskRetention     time.Duration
	MaxUploadMB       int

	SentryDSN string
}

// source resolves a key from the environment first, then from the optional
// YAML file named by CONFIG_FILE.
type source struct {
	file map[string]string
}

func (s source) getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return def
}

func (s source) getenvInt(key string, def int) int {
	v := s.getenv(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (s source) getenvDuration(key string, def time.Duration) time.Duration {
	v := s.getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func (s source) getenvBool(key string, def bool) bool {
	v := s.getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func Load() Config {
	// A missing .env is fine, the environment may be set by the runtime.
	_ = godotenv.Load()

	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(fmt.Errorf("CONFIG_FILE: %w", err))
	}
	s := source{file: file}

	return Config{
		AppEnv:        s.getenv("APP_ENV", "development"),
		HTTPAddr:      s.getenv("HTTP_ADDR", ":8000"),
		ReceiverAddr:  s.getenv("RECEIVER_ADDR", ":8002"),
		PublicBaseURL: s.getenv("PUBLIC_BASE_URL", ""),

		RedisAddr:     s.getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: s.getenv("REDIS_PASSWORD", ""),
		RedisDB:       s.getenvInt("REDIS_DB", 0),

		JobStore:      strings.ToLower(s.getenv("JOB_STORE", "redis")),
		PostgresDSN:   s.getenv("POSTGRES_DSN", ""),
		MongoURI:      s.getenv("MONGO_URI", ""),
		MongoDatabase: s.getenv("MONGO_DATABASE", "compressor"),

		ArtifactStore: strings.ToLower(s.getenv("ARTIFACT_STORE", "local")),
		DataDir:       s.getenv("DATA_DIR", "./compressed_images"),

		SupabaseURL:        s.getenv("SUPABASE_URL", ""),
		SupabaseServiceKey: s.getenv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseBucket:     s.getenv("SUPABASE_STORAGE_BUCKET", "compressed"),

		MinioEndpoint:  s.getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: s.getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: s.getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    s.getenv("MINIO_BUCKET", "compressed"),
		MinioLocation:  s.getenv("MINIO_LOCATION", ""),
		MinioUseSSL:    s.getenvBool("MINIO_SSL", false),

		WebhookURL:     s.getenv("WEBHOOK_URL", "http://127.0.0.1:8002/webhook"),
		WebhookSecret:  s.getenv("WEBHOOK_SECRET", ""),
		WebhookTimeout: s.getenvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		FetchTimeout:    s.getenvDuration("FETCH_TIMEOUT", 5*time.Second),
		FetchMaxBytes:   int64(s.getenvInt("FETCH_MAX_MB", 32)) << 20,
		CompressQuality: s.getenvInt("COMPRESS_QUALITY", 50),

		WorkerConcurrency: s.getenvInt("WORKER_CONCURRENCY", 10),
		TaskTimeout:       s.getenvDuration("TASK_TIMEOUT", 30*time.Minute),
		TaskRetention:     s.getenvDuration("TASK_RETENTION", time.Hour),
		MaxUploadMB:       s.getenvInt("MAX_UPLOAD_MB", 10),

		SentryDSN: s.getenv("SENTRY_DSN", ""),
	}
}

// Validate checks the settings the API server and worker need. The webhook
// receiver does not call it.
func (c Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	switch c.JobStore {
	case "redis":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("JOB_STORE=postgres requires POSTGRES_DSN")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("JOB_STORE=mongo requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown JOB_STORE %q", c.JobStore)
	}
	switch c.ArtifactStore {
	case "local":
		if c.DataDir == "" {
			return fmt.Errorf("ARTIFACT_STORE=local requires DATA_DIR")
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" || c.SupabaseBucket == "" {
			return fmt.Errorf("ARTIFACT_STORE=supabase requires SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY and SUPABASE_STORAGE_BUCKET")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("ARTIFACT_STORE=minio requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_STORE %q", c.ArtifactStore)
	}
	if c.CompressQuality < 1 || c.CompressQuality > 100 {
		return fmt.Errorf("COMPRESS_QUALITY must be between 1 and 100, got %d", c.CompressQuality)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}
