package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Links     LinksConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type StoreConfig struct {
	Backend string // redis | postgres
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type LinksConfig struct {
	DefaultTTL     time.Duration
	MaxTTL         time.Duration
	CodeLength     int
	CodeMode       string // random | sequential
	AliasEnabled   bool
	AliasMinLength int
	AliasMaxLength int
	MaxURLLength   int
}

type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// .env опционален: в проде всё приходит из переменных окружения
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}

	cfg.Store.Backend = viper.GetString("STORE_BACKEND")
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Политика ссылок
	cfg.Links.DefaultTTL = time.Duration(viper.GetInt64("DEFAULT_TTL_SECONDS")) * time.Second
	if cfg.Links.DefaultTTL == 0 {
		cfg.Links.DefaultTTL = 24 * time.Hour
	}
	cfg.Links.MaxTTL = time.Duration(viper.GetInt64("MAX_TTL_SECONDS")) * time.Second
	if cfg.Links.MaxTTL == 0 {
		cfg.Links.MaxTTL = 30 * 24 * time.Hour
	}
	cfg.Links.CodeLength = viper.GetInt("CODE_LENGTH")
	if cfg.Links.CodeLength == 0 {
		cfg.Links.CodeLength = 7
	}
	cfg.Links.CodeMode = viper.GetString("CODE_MODE")
	if cfg.Links.CodeMode == "" {
		cfg.Links.CodeMode = "random"
	}
	viper.SetDefault("ALIAS_ENABLED", true)
	cfg.Links.AliasEnabled = viper.GetBool("ALIAS_ENABLED")
	cfg.Links.AliasMinLength = viper.GetInt("ALIAS_MIN_LENGTH")
	if cfg.Links.AliasMinLength == 0 {
		cfg.Links.AliasMinLength = 4
	}
	cfg.Links.AliasMaxLength = viper.GetInt("ALIAS_MAX_LENGTH")
	if cfg.Links.AliasMaxLength == 0 {
		cfg.Links.AliasMaxLength = 32
	}
	cfg.Links.MaxURLLength = viper.GetInt("MAX_URL_LENGTH")
	if cfg.Links.MaxURLLength == 0 {
		cfg.Links.MaxURLLength = 2048
	}

	// Настройки свипера
	cfg.Sweep.Interval = time.Duration(viper.GetInt64("SWEEP_INTERVAL_SECONDS")) * time.Second
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = time.Minute
	}
	cfg.Sweep.BatchSize = viper.GetInt("SWEEP_BATCH_SIZE")
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = 100
	}

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	return &cfg, nil
}
