package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fleetbook/internal/models"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Booking    BookingConfig    `yaml:"booking"`
	Fleet      FleetConfig      `yaml:"fleet"`
	API        APIConfig        `yaml:"api"`
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	// ChatID is the dispatch channel that receives approval and assignment
	// notifications.
	ChatID int64 `yaml:"chat_id"`
	Debug  bool  `yaml:"debug"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	ScheduleSheetName     string `yaml:"schedule_sheet_name"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// BookingConfig holds the lifecycle policy knobs.
type BookingConfig struct {
	MaxBookingDays        int    `yaml:"max_booking_days"`
	PendingThresholdHours int    `yaml:"pending_threshold_hours"`
	ReminderInterval      int    `yaml:"reminder_interval_minutes"`
	SuggestionLimit       int    `yaml:"suggestion_limit"`
	DriverRanking         string `yaml:"driver_ranking"`
}

// FleetConfig points at the yaml seed file describing vehicles and drivers.
type FleetConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; missing file is fine.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variables referenced in the yaml are expanded before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.Google.Enabled {
		if c.Google.GoogleCredentialsFile == "" {
			return errors.New("google credentials file is required when sheets sync is enabled")
		}
		if c.Google.BookingSpreadSheetID == "" {
			return errors.New("bookings spreadsheet id is required when sheets sync is enabled")
		}
	}
	switch c.Booking.DriverRanking {
	case "", "by_id", "least_recently_assigned":
	default:
		return fmt.Errorf("unknown driver_ranking %q", c.Booking.DriverRanking)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fleetbook"
	}
	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.PendingThresholdHours == 0 {
		c.Booking.PendingThresholdHours = models.DefaultPendingThresholdHours
	}
	if c.Booking.ReminderInterval == 0 {
		c.Booking.ReminderInterval = 60
	}
	if c.Booking.SuggestionLimit == 0 {
		c.Booking.SuggestionLimit = models.DefaultSuggestionLimit
	}
	if c.Booking.DriverRanking == "" {
		c.Booking.DriverRanking = "by_id"
	}
	if c.Google.ScheduleSheetName == "" {
		c.Google.ScheduleSheetName = "Schedule"
	}
}
