package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Policy values for expense submission. Both policies are explicit
// configuration: there is no silent default behavior in the code paths that
// consume them.
const (
	// NoRulesAutoApprove approves an expense outright when its organization
	// has no configured approval rules
	NoRulesAutoApprove = "auto_approve"

	// NoRulesManagerFallback synthesizes a single manager-approval step
	NoRulesManagerFallback = "manager_fallback"

	// NoRulesBlock rejects the submission until rules are configured
	NoRulesBlock = "block"

	// ConversionStoreOriginal stores the expense unconverted when the
	// currency converter is unavailable
	ConversionStoreOriginal = "store_original"

	// ConversionReject rejects the submission when conversion fails
	ConversionReject = "reject"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// SubmissionConfig holds the submission-path policy choices
type SubmissionConfig struct {
	NoRulesPolicy    string `mapstructure:"no_rules_policy"`
	ConversionPolicy string `mapstructure:"conversion_policy"`
}

// NotifyConfig holds notification dispatch configuration
type NotifyConfig struct {
	QueueSize   int           `mapstructure:"queue_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Lark        LarkConfig    `mapstructure:"lark"`
}

// LarkConfig holds Lark bot configuration; the notifier is only wired when
// Enabled is set.
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveChatID string `mapstructure:"receive_chat_id"`
}

// AuditConfig holds audit export configuration
type AuditConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. Each call
// uses its own viper instance, so settings never leak between loads.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "data/expenseflow.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("submission.no_rules_policy", NoRulesManagerFallback)
	v.SetDefault("submission.conversion_policy", ConversionReject)

	v.SetDefault("notify.queue_size", 64)
	v.SetDefault("notify.send_timeout", 5*time.Second)
	v.SetDefault("notify.lark.enabled", false)

	v.SetDefault("audit.output_dir", "audit_exports")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("notify.lark.app_id", "LARK_APP_ID")
	v.BindEnv("notify.lark.app_secret", "LARK_APP_SECRET")
	v.BindEnv("notify.lark.receive_chat_id", "LARK_RECEIVE_CHAT_ID")
	v.BindEnv("database.path", "EXPENSEFLOW_DB_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Submission.NoRulesPolicy {
	case NoRulesAutoApprove, NoRulesManagerFallback, NoRulesBlock:
	default:
		return fmt.Errorf("submission.no_rules_policy must be one of %s, %s, %s",
			NoRulesAutoApprove, NoRulesManagerFallback, NoRulesBlock)
	}

	switch c.Submission.ConversionPolicy {
	case ConversionStoreOriginal, ConversionReject:
	default:
		return fmt.Errorf("submission.conversion_policy must be %s or %s",
			ConversionStoreOriginal, ConversionReject)
	}

	if c.Notify.Lark.Enabled {
		if c.Notify.Lark.AppID == "" {
			return fmt.Errorf("notify.lark.app_id is required when lark is enabled")
		}
		if c.Notify.Lark.AppSecret == "" {
			return fmt.Errorf("notify.lark.app_secret is required when lark is enabled")
		}
		if c.Notify.Lark.ReceiveChatID == "" {
			return fmt.Errorf("notify.lark.receive_chat_id is required when lark is enabled")
		}
	}

	return nil
}
