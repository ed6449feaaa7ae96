package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	SES           SESConfig          `yaml:"ses"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Alerts        AlertsConfig       `yaml:"alerts"`
	Invoice       InvoiceConfig      `yaml:"invoice"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the configured lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis connection used for task locks.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES delivery configuration
type SESConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotificationConfig holds inbox and email settings
type NotificationConfig struct {
	EmailEnabled       bool            `yaml:"email_enabled"`
	AppURL             string          `yaml:"app_url"`
	Retention          RetentionConfig `yaml:"retention"`
	ProgressThresholds []int           `yaml:"progress_thresholds"`
}

// RetentionConfig holds notification retention, in days
type RetentionConfig struct {
	ReadDays   int `yaml:"read_days"`
	UnreadDays int `yaml:"unread_days"`
}

// SchedulerConfig holds the detector schedule
type SchedulerConfig struct {
	Enabled           bool                  `yaml:"enabled"`
	Timezone          string                `yaml:"timezone"`
	LockTTLSeconds    int                   `yaml:"lock_ttl_seconds"`
	RunTimeoutMinutes int                   `yaml:"run_timeout_minutes"`
	Tasks             map[string]TaskConfig `yaml:"tasks"`
}

// TaskConfig toggles one detector and optionally overrides its cron spec
type TaskConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

// Location loads the scheduler time zone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LockTTL returns the configured lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RunTimeout returns the configured per-run timeout as a duration
func (c SchedulerConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

// AlertsConfig holds detector thresholds, in days
type AlertsConfig struct {
	OverdueCampaignDays      int `yaml:"overdue_campaign_days"`
	OverdueCampaignDedupDays int `yaml:"overdue_campaign_dedup_days"`
	InactiveMinDays          int `yaml:"inactive_min_days"`
	InactiveMaxDays          int `yaml:"inactive_max_days"`
	// FollowupUserDays of 0 disables company follow-ups.
	FollowupUserDays       int `yaml:"followup_user_days"`
	FollowupManagementDays int `yaml:"followup_management_days"`
}

// InvoiceConfig names the roles that gate invoice emission and cancellation
type InvoiceConfig struct {
	ElevatedRole string   `yaml:"elevated_role"`
	AdminRoles   []string `yaml:"admin_roles"`
}

// Days converts a day count to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Absent keys keep these values; explicit zeros and falses win.
	cfg := Config{
		Scheduler:     SchedulerConfig{Enabled: true},
		Notifications: NotificationConfig{EmailEnabled: true},
		Alerts:        AlertsConfig{FollowupUserDays: 7},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "eu-west-3"
	}
	if cfg.Notifications.Retention.ReadDays == 0 {
		cfg.Notifications.Retention.ReadDays = 30
	}
	if cfg.Notifications.Retention.UnreadDays == 0 {
		cfg.Notifications.Retention.UnreadDays = 90
	}
	if len(cfg.Notifications.ProgressThresholds) == 0 {
		cfg.Notifications.ProgressThresholds = []int{25, 50, 75, 100}
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Europe/Paris"
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 900
	}
	if cfg.Scheduler.RunTimeoutMinutes == 0 {
		cfg.Scheduler.RunTimeoutMinutes = 10
	}
	if cfg.Alerts.OverdueCampaignDays == 0 {
		cfg.Alerts.OverdueCampaignDays = 7
	}
	if cfg.Alerts.OverdueCampaignDedupDays == 0 {
		cfg.Alerts.OverdueCampaignDedupDays = 3
	}
	if cfg.Alerts.InactiveMinDays == 0 {
		cfg.Alerts.InactiveMinDays = 7
	}
	if cfg.Alerts.InactiveMaxDays == 0 {
		cfg.Alerts.InactiveMaxDays = 30
	}
	if cfg.Alerts.FollowupManagementDays == 0 {
		cfg.Alerts.FollowupManagementDays = 14
	}
	if cfg.Invoice.ElevatedRole == "" {
		cfg.Invoice.ElevatedRole = "SENIOR_PARTNER"
	}
	if len(cfg.Invoice.AdminRoles) == 0 {
		cfg.Invoice.AdminRoles = []string{"ADMIN", "SUPER_ADMIN"}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if v := os.Getenv("SCHEDULER_TIMEZONE"); v != "" {
		cfg.Scheduler.Timezone = v
	}

	return cfg, nil
}
