package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type Configuration struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Notices NoticeConfig  `mapstructure:"notices"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level LogLevel `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// RemoteConfig points at the placeholder REST endpoint used for seeding and ids.
type RemoteConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	SeedLimit int           `mapstructure:"seed_limit" validate:"gte=0"`
	UserID    int           `mapstructure:"user_id"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type NoticeConfig struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/coupon-manager")

	v.SetEnvPrefix("COUPONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// PORT is honoured for compatibility with container platforms
	if port := GetEnv("PORT", ""); port != "" {
		config.Server.Address = ":" + port
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("logging.level", string(defaults.Logging.Level))
	v.SetDefault("remote.enabled", defaults.Remote.Enabled)
	v.SetDefault("remote.base_url", defaults.Remote.BaseURL)
	v.SetDefault("remote.seed_limit", defaults.Remote.SeedLimit)
	v.SetDefault("remote.user_id", defaults.Remote.UserID)
	v.SetDefault("remote.timeout", defaults.Remote.Timeout)
	v.SetDefault("notices.ttl", defaults.Notices.TTL)
	v.SetDefault("notices.cleanup_interval", defaults.Notices.CleanupInterval)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns the configuration used when nothing is overridden.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: LogLevelInfo},
		Remote: RemoteConfig{
			Enabled:   true,
			BaseURL:   "https://jsonplaceholder.typicode.com",
			SeedLimit: 5,
			UserID:    1,
			Timeout:   10 * time.Second,
		},
		Notices: NoticeConfig{
			TTL:             30 * time.Second,
			CleanupInterval: time.Minute,
		},
	}
}

// GetEnv returns the value of an environment variable or a fallback value
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
