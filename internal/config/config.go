package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the agenda.
type Config struct {
	Storage  StorageConfig
	Telegram TelegramConfig
	Schedule ScheduleConfig
	Alert    AlertConfig
	Logger   LoggerConfig
	Location *time.Location
}

type StorageConfig struct {
	TasksPath   string
	DatabaseURL string
}

type TelegramConfig struct {
	Token             string
	Enabled           bool
	MessagesPerSecond float64
}

type ScheduleConfig struct {
	RefreshInterval time.Duration
	AlertInterval   time.Duration
	PurgeTime       string // HH:MM
	ReportInterval  time.Duration
}

type AlertConfig struct {
	Grace time.Duration
}

type LoggerConfig struct {
	Level        string
	Mode         string
	Encoding     string
	ColorEnabled bool
}

// Load reads config.yaml from ./config, . or $HOME/.config/deskagenda, or
// the explicit file when configFile is set. Environment variables override
// file values: storage.tasks_path is read from STORAGE_TASKS_PATH.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "deskagenda"))
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Storage.TasksPath = v.GetString("storage.tasks_path")
	cfg.Storage.DatabaseURL = v.GetString("storage.database_url")
	// Older deployments set DATABASE_URL directly.
	if dbURL := strings.TrimSpace(v.GetString("database_url")); dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
	}

	cfg.Telegram.Token = strings.TrimSpace(v.GetString("telegram.token"))
	cfg.Telegram.Enabled = v.GetBool("telegram.enabled")
	cfg.Telegram.MessagesPerSecond = v.GetFloat64("telegram.messages_per_second")

	cfg.Schedule.RefreshInterval = v.GetDuration("schedule.refresh_interval")
	cfg.Schedule.AlertInterval = v.GetDuration("schedule.alert_interval")
	cfg.Schedule.PurgeTime = v.GetString("schedule.purge_time")
	cfg.Schedule.ReportInterval = time.Duration(v.GetInt("schedule.report_interval_hours")) * time.Hour

	cfg.Alert.Grace = v.GetDuration("alert.grace")

	cfg.Logger.Level = v.GetString("logger.level")
	cfg.Logger.Mode = v.GetString("logger.mode")
	cfg.Logger.Encoding = v.GetString("logger.encoding")
	cfg.Logger.ColorEnabled = v.GetBool("logger.color_enabled")

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.TasksPath == "" {
		return fmt.Errorf("storage.tasks_path is required")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	if c.Telegram.MessagesPerSecond <= 0 {
		return fmt.Errorf("telegram.messages_per_second must be positive")
	}
	if c.Schedule.RefreshInterval <= 0 || c.Schedule.AlertInterval <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.ReportInterval < 0 {
		return fmt.Errorf("schedule.report_interval_hours must not be negative")
	}
	if c.Alert.Grace < 0 {
		return fmt.Errorf("alert.grace must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()
	v.SetDefault("storage.tasks_path", filepath.Join(dataDir, "tareas.json"))
	v.SetDefault("storage.database_url", filepath.Join(dataDir, "subscribers.db"))

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.messages_per_second", 20)

	v.SetDefault("schedule.refresh_interval", "12s")
	v.SetDefault("schedule.alert_interval", "30s")
	v.SetDefault("schedule.purge_time", "00:00")
	v.SetDefault("schedule.report_interval_hours", 5)

	v.SetDefault("alert.grace", "1m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", "production")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.color_enabled", false)

	v.SetDefault("timezone", "Local")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "deskagenda")
}
