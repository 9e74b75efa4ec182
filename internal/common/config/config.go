// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Push      PushConfig      `mapstructure:"push"`
	Mail      MailConfig      `mapstructure:"mail"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Reminders ReminderConfig  `mapstructure:"reminders"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	// Index holding current watcher locations for geo fan-out.
	LocationIndex string `mapstructure:"location_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// PushConfig holds the push transport settings.
type PushConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

// MailConfig gates the critical-priority email escalation channel.
type MailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
}

// PipelineConfig holds per-event processing knobs. The dedup window and
// the reminder poll interval are independent settings; they only happen
// to share a default.
type PipelineConfig struct {
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	DefaultRadiusKm float64       `mapstructure:"default_radius_km"`
}

// ScoringConfig anchors the urban zone used by recency and distance
// brackets in the urgency scorer.
type ScoringConfig struct {
	UrbanCenterLat float64 `mapstructure:"urban_center_lat"`
	UrbanCenterLng float64 `mapstructure:"urban_center_lng"`
	UrbanRadiusKm  float64 `mapstructure:"urban_radius_km"`
}

// ReminderConfig holds the reminder scheduler cadence and thresholds.
type ReminderConfig struct {
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	PanicAfter             time.Duration `mapstructure:"panic_after"`
	LookAfterMeInactivity  time.Duration `mapstructure:"look_after_me_inactivity"`
	LookAfterMeLongSession time.Duration `mapstructure:"look_after_me_long_session"`
}

type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
