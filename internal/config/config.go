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

const (
	DefaultPort             = 3001
	DefaultPublicURL        = "http://localhost:3001"
	DefaultFromEmail        = "onboarding@resend.dev"
	DefaultResendBaseURL    = "https://api.resend.com"
	DefaultSendInterval     = 600 * time.Millisecond
	DefaultEventLogCapacity = 10000
)

// Storage backends accepted by STORAGE_TYPE.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageS3       = "s3"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMongo    = "mongo"
)

// Mail providers accepted by MAIL_PROVIDER.
const (
	ProviderResend = "resend"
	ProviderSES    = "ses"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Mail     MailConfig     `yaml:"mail"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Send     SendConfig     `yaml:"send"`
	Tracking TrackingConfig `yaml:"tracking"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// PublicURL is the externally reachable base used in tracking links.
	PublicURL string `yaml:"public_url"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MailConfig struct {
	Provider  string       `yaml:"provider"`
	FromEmail string       `yaml:"from_email"`
	Resend    ResendConfig `yaml:"resend"`
	SES       SESConfig    `yaml:"ses"`
}

type ResendConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c ResendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type StorageConfig struct {
	Type        string      `yaml:"type"`
	DataDir     string      `yaml:"data_dir"`
	S3          S3Config    `yaml:"s3"`
	RedisURL    string      `yaml:"redis_url"`
	DatabaseURL string      `yaml:"database_url"`
	Mongo       MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

type QueueConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	// KafkaBrokers selects Kafka instead of RabbitMQ.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaGroupID string   `yaml:"kafka_group_id"`
}

type SendConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	JitterMS   int `yaml:"jitter_ms"`
	CapMS      int `yaml:"cap_ms"`
}

func (c SendConfig) Interval() time.Duration { return time.Duration(c.IntervalMS) * time.Millisecond }
func (c SendConfig) Jitter() time.Duration   { return time.Duration(c.JitterMS) * time.Millisecond }
func (c SendConfig) Cap() time.Duration      { return time.Duration(c.CapMS) * time.Millisecond }

type TrackingConfig struct {
	EventLogCapacity int `yaml:"event_log_capacity"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the optional YAML file at path and fills in defaults. An empty
// path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = DefaultPublicURL
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")

	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = ProviderResend
	}
	if cfg.Mail.FromEmail == "" {
		cfg.Mail.FromEmail = DefaultFromEmail
	}
	if cfg.Mail.Resend.BaseURL == "" {
		cfg.Mail.Resend.BaseURL = DefaultResendBaseURL
	}
	if cfg.Mail.Resend.TimeoutSeconds == 0 {
		cfg.Mail.Resend.TimeoutSeconds = 30
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "us-east-1"
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageFile
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.Mongo.Database == "" {
		cfg.Storage.Mongo.Database = "newsflow"
	}
	if cfg.Queue.KafkaGroupID == "" {
		cfg.Queue.KafkaGroupID = "newsflow"
	}

	if cfg.Send.IntervalMS == 0 {
		cfg.Send.IntervalMS = int(DefaultSendInterval / time.Millisecond)
	}
	if cfg.Tracking.EventLogCapacity == 0 {
		cfg.Tracking.EventLogCapacity = DefaultEventLogCapacity
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is read first when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) applyEnv() error {
	setString(&cfg.Server.Host, "HOST")
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.Server.PublicURL = strings.TrimRight(v, "/")
	}

	setString(&cfg.Mail.Provider, "MAIL_PROVIDER")
	setString(&cfg.Mail.FromEmail, "FROM_EMAIL")
	setString(&cfg.Mail.Resend.APIKey, "RESEND_API_KEY")
	setString(&cfg.Mail.Resend.BaseURL, "RESEND_BASE_URL")
	setString(&cfg.Mail.SES.Region, "AWS_SES_REGION")
	setString(&cfg.Mail.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.Mail.SES.SecretKey, "AWS_SES_SECRET_KEY")

	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.DataDir, "DATA_DIR")
	setString(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.S3.Prefix, "S3_PREFIX")
	setString(&cfg.Storage.S3.Region, "AWS_REGION")
	setString(&cfg.Storage.RedisURL, "REDIS_URL")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Storage.Mongo.URI, "MONGO_URI")
	setString(&cfg.Storage.Mongo.Database, "MONGO_DB")

	setString(&cfg.Queue.AMQPURL, "AMQP_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Queue.KafkaBrokers = splitList(v)
	}
	setString(&cfg.Queue.KafkaGroupID, "KAFKA_GROUP_ID")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if err := setInt(&cfg.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Send.IntervalMS, "SEND_INTERVAL_MS"); err != nil {
		return err
	}
	return setInt(&cfg.Tracking.EventLogCapacity, "EVENT_LOG_CAPACITY")
}

// Validate checks the settings a chosen backend or provider depends on.
func (cfg *Config) Validate() error {
	switch cfg.Storage.Type {
	case StorageMemory, StorageFile:
	case StorageS3:
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage type %q requires S3_BUCKET", cfg.Storage.Type)
		}
	case StorageRedis:
		if cfg.Storage.RedisURL == "" {
			return fmt.Errorf("storage type %q requires REDIS_URL", cfg.Storage.Type)
		}
	case StoragePostgres, StorageSQLite:
		if cfg.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage type %q requires DATABASE_URL", cfg.Storage.Type)
		}
	case StorageMongo:
		if cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage type %q requires MONGO_URI", cfg.Storage.Type)
		}
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	switch cfg.Mail.Provider {
	case ProviderResend, ProviderSES:
	default:
		return fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}

	if cfg.Queue.AMQPURL != "" && len(cfg.Queue.KafkaBrokers) > 0 {
		return fmt.Errorf("set only one of AMQP_URL and KAFKA_BROKERS")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	if cfg.Send.IntervalMS < 0 {
		return fmt.Errorf("invalid send interval %dms", cfg.Send.IntervalMS)
	}
	if cfg.Tracking.EventLogCapacity < 1 {
		return fmt.Errorf("invalid event log capacity %d", cfg.Tracking.EventLogCapacity)
	}
	return nil
}

// UsesDefaultPublicURL reports whether tracking links would point at localhost.
func (cfg *Config) UsesDefaultPublicURL() bool {
	return cfg.Server.PublicURL == DefaultPublicURL
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
