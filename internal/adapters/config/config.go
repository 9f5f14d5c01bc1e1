package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"flashfeed/pkg/errors"
)

type Config struct {
	App           AppConfig
	Redis         RedisConfig
	Feed          FeedConfig
	AI            AIConfig
	Workers       WorkerConfig
	API           APIConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"flashfeed"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type FeedConfig struct {
	URL      string        `envconfig:"FEED_URL" default:"https://zhibo.sina.com.cn/api/zhibo/feed"`
	ChanID   int           `envconfig:"FEED_CHANNEL_ID" default:"152"`
	Type     int           `envconfig:"FEED_TYPE" default:"1"`
	PageSize int           `envconfig:"FEED_PAGE_SIZE" default:"50"`
	Timeout  time.Duration `envconfig:"FEED_TIMEOUT" default:"10s"`
}

type AIConfig struct {
	APIKey       string        `envconfig:"AI_API_KEY"`
	BaseURL      string        `envconfig:"AI_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Model        string        `envconfig:"AI_MODEL" default:"deepseek-r1-250120"`
	Timeout      time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	ReqPerMinute float64       `envconfig:"AI_REQ_PER_MINUTE" default:"120"`
	RequestBurst int           `envconfig:"AI_REQUEST_BURST" default:"10"`
}

// WorkerConfig contains intervals and retry budgets for the pipeline.
// Defaults mirror the production cadence: poll every minute, one page
// always covers the gap.
type WorkerConfig struct {
	IngestInterval     time.Duration `envconfig:"WORKER_INGEST_INTERVAL" default:"60s"`
	IngestMaxAttempts  int           `envconfig:"WORKER_INGEST_MAX_ATTEMPTS" default:"3"`
	IngestRetryBackoff time.Duration `envconfig:"WORKER_INGEST_RETRY_BACKOFF" default:"60s"`
	IngestEnabled      bool          `envconfig:"WORKER_INGEST_ENABLED" default:"true"`

	EnrichWorkers      int           `envconfig:"WORKER_ENRICH_CONCURRENCY" default:"4"`
	EnrichQueueSize    int           `envconfig:"WORKER_ENRICH_QUEUE_SIZE" default:"256"`
	EnrichMaxAttempts  int           `envconfig:"WORKER_ENRICH_MAX_ATTEMPTS" default:"3"`
	EnrichRetryBackoff time.Duration `envconfig:"WORKER_ENRICH_RETRY_BACKOFF" default:"30s"`

	// RetentionTTL bounds how long a flash stays queryable; refreshed on
	// every overwrite, including enrichment writes.
	RetentionTTL time.Duration `envconfig:"FLASH_RETENTION_TTL" default:"168h"`
}

type APIConfig struct {
	Port int `envconfig:"API_PORT" default:"8080"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
