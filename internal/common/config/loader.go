// internal/common/config/loader.go
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

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_REDIS_ADDRESS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from the common run locations so the service
// behaves the same from the repo root, cmd dirs, and test packages.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "safety-pipeline"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		cfg.Database.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Database.Elasticsearch.LocationIndex == "" {
		cfg.Database.Elasticsearch.LocationIndex = "watcher-locations"
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "notification-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "safety-pipeline"
	}

	if cfg.Pipeline.DedupWindow == 0 {
		cfg.Pipeline.DedupWindow = 5 * time.Minute
	}
	if cfg.Pipeline.DefaultRadiusKm == 0 {
		cfg.Pipeline.DefaultRadiusKm = 5
	}

	if cfg.Scoring.UrbanRadiusKm == 0 {
		cfg.Scoring.UrbanRadiusKm = 30
	}

	if cfg.Reminders.PollInterval == 0 {
		cfg.Reminders.PollInterval = 5 * time.Minute
	}
	if cfg.Reminders.PanicAfter == 0 {
		cfg.Reminders.PanicAfter = 30 * time.Minute
	}
	if cfg.Reminders.LookAfterMeInactivity == 0 {
		cfg.Reminders.LookAfterMeInactivity = 60 * time.Minute
	}
	if cfg.Reminders.LookAfterMeLongSession == 0 {
		cfg.Reminders.LookAfterMeLongSession = 4 * time.Hour
	}

	if cfg.Ops.Addr == "" {
		cfg.Ops.Addr = ":9090"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Pipeline.DedupWindow < 0 {
		return fmt.Errorf("pipeline.dedup_window must not be negative")
	}
	if cfg.Pipeline.DefaultRadiusKm <= 0 {
		return fmt.Errorf("pipeline.default_radius_km must be positive")
	}
	if cfg.Reminders.PollInterval <= 0 {
		return fmt.Errorf("reminders.poll_interval must be positive")
	}
	if cfg.Push.Enabled && cfg.Push.TopicARN == "" {
		return fmt.Errorf("push.topic_arn is required when push is enabled")
	}
	if cfg.Mail.Enabled && cfg.Mail.FromEmail == "" {
		return fmt.Errorf("mail.from_email is required when mail is enabled")
	}
	return nil
}
