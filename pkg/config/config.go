// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Ingestion, Matching, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Store       StoreConfig       `yaml:"store"`
	Vocabulary  VocabularyConfig  `yaml:"vocabulary"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Matching    MatchingConfig    `yaml:"matching"`
	Weights     WeightsConfig     `yaml:"weights"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// TenantRateLimit is the per-tenant request budget per RateLimitWindow.
	// Zero disables rate limiting.
	TenantRateLimit int           `yaml:"tenantRateLimit"`
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentChanged string `yaml:"documentChanged"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// StoreConfig selects the document store backend ("postgres" or "memory").
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// VocabularyConfig points at the lexicon directory. An empty Dir means the
// embedded defaults are used and Watch is ignored.
type VocabularyConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// IngestionConfig controls extraction targets and batch behaviour.
type IngestionConfig struct {
	SkillFloor       int               `yaml:"skillFloor"`
	SkillCeiling     int               `yaml:"skillCeiling"`
	SyntheticTarget  int               `yaml:"syntheticTarget"`
	SyntheticMax     int               `yaml:"syntheticMax"`
	BatchConcurrency int               `yaml:"batchConcurrency"`
	ItemTimeout      time.Duration     `yaml:"itemTimeout"`
	ConflictRetries  int               `yaml:"conflictRetries"`
	MaxBatchSize     int               `yaml:"maxBatchSize"`
	HeaderOverrides  map[string]string `yaml:"headerOverrides"`
}

// MatchingConfig controls rank request limits.
type MatchingConfig struct {
	DefaultTopK          int     `yaml:"defaultTopK"`
	MaxTopK              int     `yaml:"maxTopK"`
	DefaultMaxDistanceKm float64 `yaml:"defaultMaxDistanceKm"`
}

// WeightsConfig holds the scoring weights used until an administrator
// persists a different set.
type WeightsConfig struct {
	Skill          float64 `yaml:"skill"`
	Title          float64 `yaml:"title"`
	Distance       float64 `yaml:"distance"`
	MustCategory   float64 `yaml:"mustCategory"`
	NeededCategory float64 `yaml:"neededCategory"`
	MinSkillFloor  int     `yaml:"minSkillFloor"`
}

// MaintenanceConfig holds cron specs for the background jobs. An empty spec
// disables the job.
type MaintenanceConfig struct {
	QuarantineSpec string `yaml:"quarantineSpec"`
	RecomputeSpec  string `yaml:"recomputeSpec"`
	RunOnStart     bool   `yaml:"runOnStart"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would break extraction or ranking bounds.
func (c *Config) Validate() error {
	in := c.Ingestion
	if in.SkillFloor < 0 || in.SkillCeiling <= 0 {
		return fmt.Errorf("ingestion: skillFloor and skillCeiling must be positive")
	}
	if in.SkillFloor > in.SkillCeiling {
		return fmt.Errorf("ingestion: skillFloor %d exceeds skillCeiling %d", in.SkillFloor, in.SkillCeiling)
	}
	if in.ConflictRetries < 1 {
		return fmt.Errorf("ingestion: conflictRetries must be at least 1")
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if c.Matching.MaxTopK < c.Matching.DefaultTopK {
		return fmt.Errorf("matching: maxTopK %d below defaultTopK %d", c.Matching.MaxTopK, c.Matching.DefaultTopK)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			TenantRateLimit: 600,
			RateLimitWindow: time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "talentmatch",
			User:            "talentmatch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "talentmatch-matcher",
			Topics: KafkaTopics{
				DocumentChanged: "talent.document-changed",
			},
		},
		Redis: RedisConfig{
			Enabled:   true,
			Addr:      "localhost:6379",
			PoolSize:  10,
			CacheTTL:  5 * time.Minute,
			KeyPrefix: "tm:",
		},
		Store: StoreConfig{
			Driver: "postgres",
		},
		Vocabulary: VocabularyConfig{
			Debounce: 500 * time.Millisecond,
		},
		Ingestion: IngestionConfig{
			SkillFloor:       8,
			SkillCeiling:     35,
			SyntheticTarget:  12,
			SyntheticMax:     15,
			BatchConcurrency: 4,
			ItemTimeout:      10 * time.Second,
			ConflictRetries:  3,
			MaxBatchSize:     5000,
		},
		Matching: MatchingConfig{
			DefaultTopK:          20,
			MaxTopK:              200,
			DefaultMaxDistanceKm: 0,
		},
		Weights: WeightsConfig{
			Skill:          0.85,
			Title:          0.15,
			Distance:       0.35,
			MustCategory:   0.7,
			NeededCategory: 0.3,
			MinSkillFloor:  3,
		},
		Maintenance: MaintenanceConfig{
			QuarantineSpec: "@every 1h",
			RecomputeSpec:  "@daily",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TM_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TM_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("TM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TM_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("TM_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TM_VOCABULARY_DIR"); v != "" {
		cfg.Vocabulary.Dir = v
	}
	if v := os.Getenv("TM_INGESTION_SKILL_FLOOR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.SkillFloor = n
		}
	}
	if v := os.Getenv("TM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
