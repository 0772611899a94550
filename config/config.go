package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	SQLite SQLiteConfig
	Remote RemoteConfig
	Sync   SyncConfig
	HTTP   HTTPConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
	File              string
	MaxSizeMB         int
	MaxBackups        int
	MaxAgeDays        int
}

type SQLiteConfig struct {
	Path          string
	BusyTimeoutMS int
}

type RemoteConfig struct {
	URL            string
	Timeout        time.Duration
	PushTimeout    time.Duration
	EntityTimeouts map[string]time.Duration
	Retries        int
	RetryDelay     time.Duration
	PageSize       int
	MaxPageRetries int
}

type SyncConfig struct {
	Interval      time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	StartupDelay  time.Duration
	PushBatchSize int
	MaxTries      int
	PushTimeout   time.Duration
	PullTimeout   time.Duration
	DefaultRate   float64
}

type HTTPConfig struct {
	Addr string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			AppEnv:   v.GetString("APP_ENV"),
			GRPCPort: v.GetString("GRPC_PORT"),
		},
		Logger: LoggerConfig{
			Level:             v.GetString("LOGGER_LEVEL"),
			Encoding:          v.GetString("LOGGER_ENCODING"),
			DisableCaller:     v.GetBool("LOGGER_DISABLE_CALLER"),
			DisableStacktrace: v.GetBool("LOGGER_DISABLE_STACKTRACE"),
			File:              v.GetString("LOGGER_FILE"),
			MaxSizeMB:         v.GetInt("LOGGER_MAX_SIZE_MB"),
			MaxBackups:        v.GetInt("LOGGER_MAX_BACKUPS"),
			MaxAgeDays:        v.GetInt("LOGGER_MAX_AGE_DAYS"),
		},
		SQLite: SQLiteConfig{
			Path:          v.GetString("SQLITE_PATH"),
			BusyTimeoutMS: v.GetInt("SQLITE_BUSY_TIMEOUT_MS"),
		},
		Remote: RemoteConfig{
			URL:         v.GetString("REMOTE_URL"),
			Timeout:     millis(v, "REMOTE_TIMEOUT_MS"),
			PushTimeout: millis(v, "REMOTE_PUSH_TIMEOUT_MS"),
			EntityTimeouts: map[string]time.Duration{
				"users":    millis(v, "REMOTE_TIMEOUT_USERS_MS"),
				"rates":    millis(v, "REMOTE_TIMEOUT_RATES_MS"),
				"debts":    millis(v, "REMOTE_TIMEOUT_DEBTS_MS"),
				"products": millis(v, "REMOTE_TIMEOUT_PRODUCTS_MS"),
				"sales":    millis(v, "REMOTE_TIMEOUT_SALES_MS"),
			},
			Retries:        v.GetInt("REMOTE_RETRIES"),
			RetryDelay:     millis(v, "REMOTE_RETRY_DELAY_MS"),
			PageSize:       v.GetInt("REMOTE_PAGE_SIZE"),
			MaxPageRetries: v.GetInt("REMOTE_MAX_PAGE_RETRIES"),
		},
		Sync: SyncConfig{
			Interval:      millis(v, "SYNC_INTERVAL_MS"),
			ProbeInterval: millis(v, "SYNC_PROBE_INTERVAL_MS"),
			ProbeTimeout:  millis(v, "SYNC_PROBE_TIMEOUT_MS"),
			StartupDelay:  millis(v, "SYNC_STARTUP_DELAY_MS"),
			PushBatchSize: v.GetInt("SYNC_PUSH_BATCH_SIZE"),
			MaxTries:      v.GetInt("SYNC_MAX_TRIES"),
			PushTimeout:   millis(v, "SYNC_PUSH_TIMEOUT_MS"),
			PullTimeout:   millis(v, "SYNC_PULL_TIMEOUT_MS"),
			DefaultRate:   v.GetFloat64("SYNC_DEFAULT_RATE"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("HTTP_ADDR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("GRPC_PORT", ":8082")

	v.SetDefault("LOGGER_LEVEL", "debug")
	v.SetDefault("LOGGER_ENCODING", "console")
	v.SetDefault("LOGGER_DISABLE_CALLER", false)
	v.SetDefault("LOGGER_DISABLE_STACKTRACE", true)
	v.SetDefault("LOGGER_FILE", "")
	v.SetDefault("LOGGER_MAX_SIZE_MB", 20)
	v.SetDefault("LOGGER_MAX_BACKUPS", 5)
	v.SetDefault("LOGGER_MAX_AGE_DAYS", 30)

	v.SetDefault("SQLITE_PATH", "./data/pos.db")
	v.SetDefault("SQLITE_BUSY_TIMEOUT_MS", 5000)

	v.SetDefault("REMOTE_URL", "")
	v.SetDefault("REMOTE_TIMEOUT_MS", 7000)
	v.SetDefault("REMOTE_PUSH_TIMEOUT_MS", 9000)
	v.SetDefault("REMOTE_TIMEOUT_USERS_MS", 6000)
	v.SetDefault("REMOTE_TIMEOUT_RATES_MS", 6000)
	v.SetDefault("REMOTE_TIMEOUT_DEBTS_MS", 7000)
	v.SetDefault("REMOTE_TIMEOUT_PRODUCTS_MS", 30000)
	v.SetDefault("REMOTE_TIMEOUT_SALES_MS", 30000)
	v.SetDefault("REMOTE_RETRIES", 1)
	v.SetDefault("REMOTE_RETRY_DELAY_MS", 400)
	v.SetDefault("REMOTE_PAGE_SIZE", 300)
	v.SetDefault("REMOTE_MAX_PAGE_RETRIES", 8)

	v.SetDefault("SYNC_INTERVAL_MS", 10000)
	v.SetDefault("SYNC_PROBE_INTERVAL_MS", 15000)
	v.SetDefault("SYNC_PROBE_TIMEOUT_MS", 3000)
	v.SetDefault("SYNC_STARTUP_DELAY_MS", 5000)
	v.SetDefault("SYNC_PUSH_BATCH_SIZE", 50)
	v.SetDefault("SYNC_MAX_TRIES", 3)
	v.SetDefault("SYNC_PUSH_TIMEOUT_MS", 120000)
	v.SetDefault("SYNC_PULL_TIMEOUT_MS", 180000)
	v.SetDefault("SYNC_DEFAULT_RATE", 2800)

	v.SetDefault("HTTP_ADDR", "127.0.0.1:8090")
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func (c *Config) Validate() error {
	var errs []error
	if c.Sync.Interval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_INTERVAL_MS must be positive, got %s", c.Sync.Interval))
	}
	if c.Sync.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_PROBE_INTERVAL_MS must be positive, got %s", c.Sync.ProbeInterval))
	}
	if c.Sync.PushBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_PUSH_BATCH_SIZE must be positive, got %d", c.Sync.PushBatchSize))
	}
	if c.Sync.MaxTries <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_TRIES must be positive, got %d", c.Sync.MaxTries))
	}
	if c.Sync.DefaultRate <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_DEFAULT_RATE must be positive, got %v", c.Sync.DefaultRate))
	}
	if c.Remote.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("REMOTE_PAGE_SIZE must be positive, got %d", c.Remote.PageSize))
	}
	if c.SQLite.Path == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.AppEnv == "dev"
}
