package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	vaultPassphrase   = "VAULT_PASSPHRASE"
	backendURL        = "BACKEND_URL"

	envPrefix = "FLEET"
)

// Config ...
type Config struct {
	Service struct {
		Name      string `mapstructure:"name"`
		AdminAddr string `mapstructure:"admin_addr"`
	} `mapstructure:"service"`

	Backend struct {
		BaseURL   string        `mapstructure:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RateLimit float64       `mapstructure:"rate_limit"` // req/s, 0 = unlimited
		RateBurst int           `mapstructure:"rate_burst"`
	} `mapstructure:"backend"`

	Sync struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"sync"`

	Session struct {
		// ConnectOnStart reuses vault credentials at startup instead of
		// waiting for /connect
		ConnectOnStart bool `mapstructure:"connect_on_start"`
	} `mapstructure:"session"`

	Vault struct {
		Path       string `mapstructure:"path"`
		Passphrase string `mapstructure:"passphrase"`
		WorkFactor int    `mapstructure:"work_factor"`
	} `mapstructure:"vault"`

	Telegram struct {
		Token          string        `mapstructure:"token"`
		ChatID         int64         `mapstructure:"chat_id"`
		ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	} `mapstructure:"telegram"`

	Stream struct {
		Enabled    bool          `mapstructure:"enabled"`
		URL        string        `mapstructure:"url"` // ws://host/ws/user_001
		Backoff    time.Duration `mapstructure:"backoff"`
		MaxBackoff time.Duration `mapstructure:"max_backoff"`
		MinGap     time.Duration `mapstructure:"min_gap"`
	} `mapstructure:"stream"`

	DB string `mapstructure:"db_dsn"`

	Log struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`

	Tracing struct {
		Host       string  `mapstructure:"host"`
		Port       int     `mapstructure:"port"`
		SampleRate float64 `mapstructure:"sample_rate"`
	} `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "fleet-remote")
	v.SetDefault("service.admin_addr", ":8080")

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.rate_limit", 10.0)
	v.SetDefault("backend.rate_burst", 10)

	v.SetDefault("sync.interval", 10*time.Second)
	v.SetDefault("session.connect_on_start", false)

	v.SetDefault("vault.path", "data/credentials.age")
	v.SetDefault("vault.passphrase", "")
	v.SetDefault("vault.work_factor", 15)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", int64(0))
	v.SetDefault("telegram.confirm_timeout", 60*time.Second)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.url", "")
	v.SetDefault("stream.backoff", time.Second)
	v.SetDefault("stream.max_backoff", 30*time.Second)
	v.SetDefault("stream.min_gap", 2*time.Second)
	v.SetDefault("db_dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// NewConfig reads configs/$CONFIG_FILE (values_local.yaml by default). A
// missing file is fine, defaults and env still apply.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	configDir := os.Getenv(configDirENV)
	if configDir == "" {
		configDir = "configs"
	}

	return Load(filepath.Join(configDir, configFileName))
}

// Load reads the given file. Empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// short names kept for existing deployments
	_ = v.BindEnv("telegram.token", envPrefix+"_TELEGRAM_TOKEN", tokenTelegramENV)
	_ = v.BindEnv("db_dsn", envPrefix+"_DB_DSN", databaseDSN)
	_ = v.BindEnv("vault.passphrase", envPrefix+"_VAULT_PASSPHRASE", vaultPassphrase)
	_ = v.BindEnv("backend.base_url", envPrefix+"_BACKEND_BASE_URL", backendURL)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be > 0, got %s", c.Sync.Interval)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when stream.enabled")
	}
	return nil
}

// TelegramEnabled ...
func (c *Config) TelegramEnabled() bool { return c.Telegram.Token != "" }
