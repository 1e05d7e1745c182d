// Package config loads settings for the server and the CLI from an optional
// YAML file and SPENDTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// SPENDTRACK_SERVER_ADDR or SPENDTRACK_RECEIPT_OPENAI_API_KEY.
const EnvPrefix = "SPENDTRACK"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Client   ClientConfig   `mapstructure:"client"`
	Receipt  ReceiptConfig  `mapstructure:"receipt"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
	// DataDir holds the durable local store shared by all sessions.
	DataDir      string        `mapstructure:"data_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type ReceiptConfig struct {
	// Provider is "gemini", "openai" or "" to disable scanning.
	Provider string      `mapstructure:"provider"`
	Gemini   ModelConfig `mapstructure:"gemini"`
	OpenAI   ModelConfig `mapstructure:"openai"`
}

type ModelConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Load reads configuration. path may name a YAML file; when empty, a
// "spendtrack.yaml" in the working directory is used if present. Every key
// has a default, so no file is required.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("spendtrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/spendtrack.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 0)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.data_dir", "./data/client")
	v.SetDefault("client.poll_interval", 2*time.Second)

	v.SetDefault("receipt.provider", "")
	v.SetDefault("receipt.gemini.api_key", "")
	v.SetDefault("receipt.gemini.base_url", "")
	v.SetDefault("receipt.gemini.model", "")
	v.SetDefault("receipt.openai.api_key", "")
	v.SetDefault("receipt.openai.base_url", "")
	v.SetDefault("receipt.openai.model", "")
}

// Validate checks values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	switch c.Receipt.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown receipt.provider %q", c.Receipt.Provider)
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	return nil
}
