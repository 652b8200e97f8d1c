package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applogger "TFTracker/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TFT_REDIS_HOST.
const EnvPrefix = "TFT"

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Log         applogger.Config `yaml:"log"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		AllowedOrigins  []string      `yaml:"allowed_origins" default:"[\"http://localhost:3000\",\"http://127.0.0.1:3000\"]"`
	} `yaml:"server"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		Path          string        `yaml:"path" default:"/metrics"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"500ms"`
	} `yaml:"metrics"`
	RateLimit struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		RPS     float64       `yaml:"rps" default:"5"`
		Burst   int           `yaml:"burst" default:"10"`
		IdleTTL time.Duration `yaml:"idle_ttl" default:"10m"`
	} `yaml:"rate_limit"`
	Storage struct {
		Backend string `yaml:"backend" default:"clickhouse"` // clickhouse | memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tft_tracker"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		AutoMigrate      bool          `yaml:"auto_migrate" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"tft"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	PhaseStore struct {
		Backend    string `yaml:"backend" default:"redis"` // redis | memory
		HistoryCap int    `yaml:"history_cap" default:"1000"`
	} `yaml:"phase_store"`
	Kafka struct {
		Enabled         bool     `yaml:"enabled"`
		Brokers         []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		SnapshotTopic   string   `yaml:"snapshot_topic" default:"tft.snapshots"`
		TransitionTopic string   `yaml:"transition_topic" default:"tft.phase-transitions"`
		RequiredAcks    int      `yaml:"required_acks" default:"-1"`
		Compression     string   `yaml:"compression" default:"snappy"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tft-tracker"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Classifier struct {
		SentimentEnabled bool          `yaml:"sentiment_enabled"`
		SentimentWindow  time.Duration `yaml:"sentiment_window" default:"60m"`
	} `yaml:"classifier"`
	Updater struct {
		Parallelism int           `yaml:"parallelism" default:"4"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"30s"`
		LockWait    time.Duration `yaml:"lock_wait" default:"10s"`
		LockRetry   time.Duration `yaml:"lock_retry" default:"50ms"`
	} `yaml:"updater"`
	Scheduler struct {
		Enabled  bool          `yaml:"enabled" default:"true"`
		Interval time.Duration `yaml:"interval" default:"1m"`
		Tickers  []string      `yaml:"tickers" default:"[\"NVDA\",\"BTC-USD\"]"`
	} `yaml:"scheduler"`
	Cache struct {
		PhaseTTL time.Duration `yaml:"phase_ttl" default:"15s"`
	} `yaml:"cache"`
	Tickers struct {
		Aliases map[string]string `yaml:"aliases" default:"{\"BTC\":\"BTC-USD\",\"ETH\":\"ETH-USD\"}"`
	} `yaml:"tickers"`
}

// envOverrides lists the settings that may be overridden from the environment.
// Booleans are strings so that an unset variable is distinguishable from false.
type envOverrides struct {
	Environment        string   `envconfig:"ENVIRONMENT"`
	LogLevel           string   `envconfig:"LOG_LEVEL"`
	LogFormat          string   `envconfig:"LOG_FORMAT"`
	ServerPort         int      `envconfig:"SERVER_PORT"`
	StorageBackend     string   `envconfig:"STORAGE_BACKEND"`
	ClickHouseHost     string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePort     int      `envconfig:"CLICKHOUSE_PORT"`
	ClickHouseDatabase string   `envconfig:"CLICKHOUSE_DATABASE"`
	ClickHouseUser     string   `envconfig:"CLICKHOUSE_USER"`
	ClickHousePassword string   `envconfig:"CLICKHOUSE_PASSWORD"`
	RedisHost          string   `envconfig:"REDIS_HOST"`
	RedisPort          int      `envconfig:"REDIS_PORT"`
	RedisPassword      string   `envconfig:"REDIS_PASSWORD"`
	PhaseStoreBackend  string   `envconfig:"PHASE_STORE_BACKEND"`
	KafkaEnabled       string   `envconfig:"KAFKA_ENABLED"`
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
	SentimentEnabled   string   `envconfig:"ENABLE_SENTIMENT"`
	SentimentWindow    string   `envconfig:"SENTIMENT_WINDOW"`
	IngestTickers      []string `envconfig:"INGEST_TICKERS"`
	SchedulerInterval  string   `envconfig:"SCHEDULER_INTERVAL"`
}

// Default returns a configuration populated from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file and then TFT_* overrides.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := envconfig.Process(EnvPrefix, &ov); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setString(&c.Environment, ov.Environment)
	setString(&c.Log.Level, ov.LogLevel)
	setString(&c.Log.Format, ov.LogFormat)
	setInt(&c.Server.Port, ov.ServerPort)
	setString(&c.Storage.Backend, ov.StorageBackend)
	setString(&c.ClickHouse.Host, ov.ClickHouseHost)
	setInt(&c.ClickHouse.Port, ov.ClickHousePort)
	setString(&c.ClickHouse.Database, ov.ClickHouseDatabase)
	setString(&c.ClickHouse.User, ov.ClickHouseUser)
	setString(&c.ClickHouse.Password, ov.ClickHousePassword)
	setString(&c.Redis.Host, ov.RedisHost)
	setInt(&c.Redis.Port, ov.RedisPort)
	setString(&c.Redis.Password, ov.RedisPassword)
	setString(&c.PhaseStore.Backend, ov.PhaseStoreBackend)
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = trimAll(ov.KafkaBrokers)
	}
	if len(ov.IngestTickers) > 0 {
		c.Scheduler.Tickers = trimAll(ov.IngestTickers)
	}
	if err := setBool(&c.Kafka.Enabled, ov.KafkaEnabled, "KAFKA_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.Classifier.SentimentEnabled, ov.SentimentEnabled, "ENABLE_SENTIMENT"); err != nil {
		return err
	}
	if err := setDuration(&c.Classifier.SentimentWindow, ov.SentimentWindow, "SENTIMENT_WINDOW"); err != nil {
		return err
	}
	return setDuration(&c.Scheduler.Interval, ov.SchedulerInterval, "SCHEDULER_INTERVAL")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Backend != "clickhouse" && c.Storage.Backend != "memory" {
		return fmt.Errorf("storage.backend must be 'clickhouse' or 'memory', got '%s'", c.Storage.Backend)
	}
	if c.PhaseStore.Backend != "redis" && c.PhaseStore.Backend != "memory" {
		return fmt.Errorf("phase_store.backend must be 'redis' or 'memory', got '%s'", c.PhaseStore.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Classifier.SentimentWindow <= 0 {
		return fmt.Errorf("classifier.sentiment_window must be positive")
	}
	if c.Updater.Parallelism < 1 {
		return fmt.Errorf("updater.parallelism must be >= 1")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v, name string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s_%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s_%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
