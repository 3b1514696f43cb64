package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

const defaultMinSeparationKm = 0.05

type Config struct {
	Environment string
	LogLevel    zerolog.Level
	HTTPTimeout time.Duration
	MaxRetries  int
	ListenAddr  string

	// Registration rules
	MinSeparationKm float64
	ComparePending  bool

	// Storage
	StoreBackend string
	DatabaseURL  string
	DynamoTable  string

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Photo blobs
	PhotoBucket    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// Approved list snapshot
	SnapshotBucket string
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithHTTPTimeout allows setting the HTTP timeout
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

func WithListenAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.ListenAddr = addr
		}
	}
}

// WithMinSeparationKm sets the duplicate radius. Non-positive values keep the default.
func WithMinSeparationKm(km float64) Option {
	return func(c *Config) {
		if km > 0 {
			c.MinSeparationKm = km
		}
	}
}

func WithComparePending(enabled bool) Option {
	return func(c *Config) {
		c.ComparePending = enabled
	}
}

// WithStoreBackend selects memory, postgres or dynamodb. Unknown names fall back to memory.
func WithStoreBackend(backend string) Option {
	return func(c *Config) {
		switch strings.ToLower(backend) {
		case StorePostgres:
			c.StoreBackend = StorePostgres
		case StoreDynamoDB:
			c.StoreBackend = StoreDynamoDB
		default:
			c.StoreBackend = StoreMemory
		}
	}
}

func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

func WithDynamoTable(table string) Option {
	return func(c *Config) {
		if table != "" {
			c.DynamoTable = table
		}
	}
}

// WithKafka configures event publishing. brokers is a comma separated list.
func WithKafka(brokers, topic string) Option {
	return func(c *Config) {
		c.KafkaBrokers = splitList(brokers)
		if topic != "" {
			c.KafkaTopic = topic
		}
	}
}

func WithMinio(endpoint, accessKey, secretKey string, useSSL bool) Option {
	return func(c *Config) {
		c.MinioEndpoint = endpoint
		c.MinioAccessKey = accessKey
		c.MinioSecretKey = secretKey
		c.MinioUseSSL = useSSL
	}
}

func WithPhotoBucket(bucket string) Option {
	return func(c *Config) {
		c.PhotoBucket = bucket
	}
}

func WithSnapshotBucket(bucket string) Option {
	return func(c *Config) {
		c.SnapshotBucket = bucket
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:     "production",
		LogLevel:        zerolog.InfoLevel,
		HTTPTimeout:     10 * time.Second,
		MaxRetries:      3,
		ListenAddr:      ":8080",
		MinSeparationKm: defaultMinSeparationKm,
		StoreBackend:    StoreMemory,
		DynamoTable:     "fuel-stations",
		KafkaTopic:      "fuel-stations",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	// Setup console logger for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// EventsEnabled reports whether a Kafka publisher should be built.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// PhotosEnabled reports whether the photo upload endpoint should be served.
func (c *Config) PhotosEnabled() bool {
	return c.MinioEndpoint != "" && c.PhotoBucket != ""
}

// LoadFromEnv loads configuration from environment variables, reading a .env file first
// when one exists in the working directory.
func LoadFromEnv() *Config {
	loadDotEnv(".env")

	return New(
		WithEnvironment(getEnvOrDefault("ENV", "production")),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", 10*time.Second)),
		WithListenAddr(os.Getenv("LISTEN_ADDR")),
		WithMinSeparationKm(getEnvFloat("MIN_SEPARATION_KM", defaultMinSeparationKm)),
		WithComparePending(getEnvBool("COMPARE_PENDING", false)),
		WithStoreBackend(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		WithDatabaseURL(os.Getenv("DATABASE_URL")),
		WithDynamoTable(os.Getenv("DYNAMODB_TABLE")),
		WithKafka(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_TOPIC")),
		WithMinio(
			os.Getenv("MINIO_ENDPOINT"),
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			getEnvBool("MINIO_USE_SSL", false),
		),
		WithPhotoBucket(os.Getenv("PHOTO_BUCKET")),
		WithSnapshotBucket(os.Getenv("SNAPSHOT_BUCKET")),
	)
}

// loadDotEnv loads variables from path without overriding ones already set.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("No .env file found, using process environment")
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("Failed to load .env file")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
