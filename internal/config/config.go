package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot and the HTTP API.
type Config struct {
	TelegramToken  string        `mapstructure:"telegram_token"`
	DatabaseURL    string        `mapstructure:"database_url"`
	ReportInterval time.Duration `mapstructure:"-"`
	ReportAt       string        `mapstructure:"report_at"`
	HTTPAddr       string        `mapstructure:"http_addr"`
	LoginDebounce  time.Duration `mapstructure:"-"`
	Timezone       string        `mapstructure:"timezone"`
	Log            LogConfig     `mapstructure:"-"`
}

type LogConfig struct {
	Environment string
	Level       string
	File        string
}

// Location resolves the configured timezone; wall-clock dates are computed in it.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// keys are read from the environment under their upper-case names.
var keys = []string{
	"telegram_token",
	"database_url",
	"report_interval_hours",
	"report_at",
	"http_addr",
	"login_debounce",
	"timezone",
	"app_env",
	"log_level",
	"log_file",
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables take precedence over file values. The file path comes from
// PLANNER_CONFIG_FILE when configPath is empty.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv("PLANNER_CONFIG_FILE"))
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Log = LogConfig{
		Environment: strings.ToLower(v.GetString("app_env")),
		Level:       v.GetString("log_level"),
		File:        v.GetString("log_file"),
	}

	hours := v.GetInt("report_interval_hours")
	if hours < 0 {
		return Config{}, fmt.Errorf("report_interval_hours must not be negative")
	}
	cfg.ReportInterval = time.Duration(hours) * time.Hour

	debounce, err := time.ParseDuration(v.GetString("login_debounce"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid login_debounce: %w", err)
	}
	cfg.LoginDebounce = debounce

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "routine_planner.db")
	v.SetDefault("report_interval_hours", 0)
	v.SetDefault("report_at", "08:00")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("login_debounce", "5m")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/routine-planner.log")
}

func validate(cfg Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		return errors.New("either telegram_token or http_addr must be set")
	}
	if cfg.LoginDebounce <= 0 {
		return errors.New("login_debounce must be positive")
	}
	if _, err := time.Parse("15:04", cfg.ReportAt); err != nil {
		return fmt.Errorf("report_at must be HH:MM: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}
