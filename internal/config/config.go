// Package config binds the environment inputs of spec.md §6 into typed,
// fail-fast configuration structs, one per concern, following the
// teacher's envconfig-struct-per-concern layout (internal/config/config.go
// in hszk-dev-gostream).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	S3       S3Config
	Metadata MetadataConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`

	// StaticURLBase is the public prefix emitted in response URLs
	// (spec.md §6 STATIC_URL_BASE).
	StaticURLBase string `envconfig:"STATIC_URL_BASE" default:"https://static.mentorpal.org"`

	// StatusURLForceHTTPS rewrites http:// to https:// in statusUrl
	// responses when set to 1|y|true|on (spec.md §6 STATUS_URL_FORCE_HTTPS).
	// Kept as a raw string because envconfig's bool parser only accepts
	// strconv.ParseBool's vocabulary.
	StatusURLForceHTTPS string `envconfig:"STATUS_URL_FORCE_HTTPS" default:""`
}

// ForceHTTPS interprets the STATUS_URL_FORCE_HTTPS values spec.md §6
// recognizes (1|y|true|on, case-insensitive).
func (c ServerConfig) ForceHTTPS() bool {
	switch strings.ToLower(strings.TrimSpace(c.StatusURLForceHTTPS)) {
	case "1", "y", "true", "on":
		return true
	default:
		return false
	}
}

type WorkerConfig struct {
	// UploadRoot is the dispatcher's scratch directory for incoming video
	// uploads (spec.md §6 UPLOAD_ROOT).
	UploadRoot string `envconfig:"UPLOAD_ROOT" default:"/tmp/mentor-upload/uploads"`

	// TranscodeWorkDir is the worker scratch root; each job gets a scoped
	// subdirectory under it (spec.md §6 TRANSCODE_WORK_DIR).
	TranscodeWorkDir string `envconfig:"TRANSCODE_WORK_DIR" default:"/tmp/mentor-upload/work"`

	// StageName selects which C5 StageHandler cmd/worker runs.
	StageName string `envconfig:"STAGE_NAME"`

	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// S3Config binds the STATIC_AWS_* object-store credentials (spec.md §6).
type S3Config struct {
	Endpoint  string `envconfig:"STATIC_AWS_S3_ENDPOINT"`
	Region    string `envconfig:"STATIC_AWS_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"STATIC_AWS_ACCESS_KEY_ID" required:"true"`
	SecretKey string `envconfig:"STATIC_AWS_SECRET_ACCESS_KEY" required:"true"`
	Bucket    string `envconfig:"STATIC_AWS_S3_BUCKET" required:"true"`
	UseSSL    bool   `envconfig:"STATIC_AWS_S3_USE_SSL" default:"true"`
}

// MetadataConfig binds the external metadata service's endpoint and
// shared secret (spec.md §6 GRAPHQL_ENDPOINT, API_SECRET).
type MetadataConfig struct {
	Endpoint string        `envconfig:"GRAPHQL_ENDPOINT" required:"true"`
	APIKey   string        `envconfig:"API_SECRET" required:"true"`
	Timeout  time.Duration `envconfig:"GRAPHQL_TIMEOUT" default:"10s"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"mentor-upload"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"mentor-upload"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
	Prefetch int    `envconfig:"RABBITMQ_PREFETCH" default:"1"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

// RedisConfig backs the C3 fetch_question_name caching decorator.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_QUESTION_NAME_TTL" default:"24h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig binds the symmetric JWT signing key the manage-content and
// edit-mentor policies verify bearer tokens against (spec.md §6 JWT_SECRET).
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// LogConfig selects the slog handler and level (spec.md §6
// LOG_LEVEL_UPLOAD_API, LOG_FORMAT_UPLOAD_API).
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL_UPLOAD_API" default:"info"`
	Format string `envconfig:"LOG_FORMAT_UPLOAD_API" default:"json"` // json|verbose|simple
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
