package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./lectern.db"`
	TranscriptsDir string `env:"TRANSCRIPTS_DIR" envDefault:"./transcripts"`
	Watch          bool   `env:"WATCH" envDefault:"true"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  string        `env:"CORS_ORIGINS"` // comma-separated allowlist; empty allows any origin
	RateRPS      float64       `env:"RATE_LIMIT_RPS"`
	RateBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"30"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"recordings/#"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"lectern"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	ASRURL      string        `env:"ASR_URL"`
	ASRModel    string        `env:"ASR_MODEL" envDefault:"large-v3"`
	ASRLanguage string        `env:"ASR_LANGUAGE"`
	ASRTimeout  time.Duration `env:"ASR_TIMEOUT" envDefault:"10m"`
	ASRWorkers  int           `env:"ASR_WORKERS" envDefault:"2"`
	ASRQueue    int           `env:"ASR_QUEUE" envDefault:"32"`

	LLMURL     string        `env:"LLM_URL"`
	LLMModel   string        `env:"LLM_MODEL"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"2m"`

	S3            S3Config `envPrefix:"S3_"`
	RecordingsDir string   `env:"RECORDINGS_DIR" envDefault:"./recordings"`
	CacheDir      string   `env:"CACHE_DIR" envDefault:"./cache"`

	IncludeExt        string        `env:"INCLUDE_EXT" envDefault:".mp3,.wav,.m4a,.mp4,.mov"`
	MinFreeGB         float64       `env:"MIN_FREE_GB" envDefault:"5"`
	DiskCheckInterval time.Duration `env:"DISK_CHECK_INTERVAL" envDefault:"30s"`
	DiskMaxWait       time.Duration `env:"DISK_MAX_WAIT" envDefault:"60m"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config holds settings for the S3-compatible recording source.
// A non-empty bucket enables remote acquisition.
type S3Config struct {
	Endpoint       string        `env:"ENDPOINT"`
	Region         string        `env:"REGION" envDefault:"us-east-1"`
	Bucket         string        `env:"BUCKET"`
	Prefix         string        `env:"PREFIX"`
	AccessKey      string        `env:"ACCESS_KEY"`
	SecretKey      string        `env:"SECRET_KEY"`
	CacheRetention time.Duration `env:"CACHE_RETENTION" envDefault:"168h"`
	CacheMaxGB     int           `env:"CACHE_MAX_GB"`
}

// Enabled reports whether a remote recording source is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile        string
	HTTPAddr       string
	LogLevel       string
	DatabasePath   string
	TranscriptsDir string
	CacheDir       string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabasePath != "" {
		cfg.DatabasePath = overrides.DatabasePath
	}
	if overrides.TranscriptsDir != "" {
		cfg.TranscriptsDir = overrides.TranscriptsDir
	}
	if overrides.CacheDir != "" {
		cfg.CacheDir = overrides.CacheDir
	}

	return cfg, nil
}
