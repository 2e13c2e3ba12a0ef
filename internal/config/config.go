package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gator/domain"
)

const (
	FileName  = ".gatorconfig.json"
	EnvPrefix = "GATOR"
)

type Config struct {
	DBURL           string        `mapstructure:"db_url"`
	CurrentUserName string        `mapstructure:"current_user_name"`
	FetchInterval   time.Duration `mapstructure:"fetch_interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	ControlAddr     string        `mapstructure:"control_addr"`
	Log             LogConfig     `mapstructure:"log"`

	path string
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Path returns the config file location; an explicit path wins over GATOR_CONFIG and ~/.gatorconfig.json.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home dir: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// Load reads the JSON config file (missing is fine), then GATOR_* environment overrides.
func Load(explicit string) (*Config, error) {
	path, err := Path(explicit)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if _, statErr := os.Stat(path); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrConfiguration, path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, statErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", domain.ErrConfiguration, err)
	}
	cfg.path = path
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Path() string { return c.path }

// SetUser persists current_user_name, rewriting only what the file already holds.
func (c *Config) SetUser(name string) error {
	v := viper.New()
	v.SetConfigFile(c.path)
	v.SetConfigType("json")
	if _, err := os.Stat(c.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", c.path, err)
		}
	}
	v.Set("current_user_name", name)

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("writing %s: %w", c.path, err)
	}
	c.CurrentUserName = name
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("%w: db_url is empty", domain.ErrConfiguration)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("%w: fetch_interval must be positive", domain.ErrConfiguration)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch_timeout must not be negative", domain.ErrConfiguration)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_url", defaultDBURL())
	v.SetDefault("current_user_name", "")
	v.SetDefault("fetch_interval", "1m")
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("user_agent", "gator")
	v.SetDefault("control_addr", getenv("CONTROL_ADDR", "127.0.0.1:8088"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 64)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
}

// defaultDBURL assembles a Postgres URL from the conventional POSTGRES_* variables.
func defaultDBURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		getenv("POSTGRES_USER", "postgres"),
		getenv("POSTGRES_PASSWORD", "changeme"),
		getenv("POSTGRES_HOST", "localhost"),
		parseIntEnv("POSTGRES_PORT", 5432),
		getenv("POSTGRES_DBNAME", "gator"),
	)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
