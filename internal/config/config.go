// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Memory     MemoryConfig     `mapstructure:"memory" yaml:"memory"`
	Executor   ExecutorConfig   `mapstructure:"executor" yaml:"executor"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig tunes the orchestrator's pipeline behavior.
type AgentConfig struct {
	// PlanningTimeout bounds a single plan construction; on expiry the query
	// fails cleanly instead of hanging the session.
	PlanningTimeout time.Duration `mapstructure:"planning_timeout" yaml:"planning_timeout"`
	// SimilarityThreshold is the confidence floor for reusing a memorized
	// template instead of planning from scratch.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	// AlwaysPreview forces every plan through the consent gate regardless of
	// its computed safety level.
	AlwaysPreview bool `mapstructure:"always_preview" yaml:"always_preview"`
	// AutoRollback runs a plan's rollback actions after a non-recoverable
	// execution failure.
	AutoRollback bool `mapstructure:"auto_rollback" yaml:"auto_rollback"`
}

// MemoryConfig bounds and tunes the experience store.
type MemoryConfig struct {
	// Capacity is the template ceiling; insertion beyond it evicts the least
	// recently used template.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// MatchThreshold is the minimum similarity for FindMatch to return a
	// template at all.
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
	// UpdateThreshold is the similarity above which a learned plan reinforces
	// an existing template in place rather than inserting a new one.
	UpdateThreshold float64 `mapstructure:"update_threshold" yaml:"update_threshold"`
	// SQLitePath, when set, persists templates to the given database file.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// ExecutorConfig tunes per-action timing in the action executor.
type ExecutorConfig struct {
	DefaultActionTimeout time.Duration `mapstructure:"default_action_timeout" yaml:"default_action_timeout"`
	ClickRetryDelay      time.Duration `mapstructure:"click_retry_delay" yaml:"click_retry_delay"`
	InputFocusDelay      time.Duration `mapstructure:"input_focus_delay" yaml:"input_focus_delay"`
	WaitPollInterval     time.Duration `mapstructure:"wait_poll_interval" yaml:"wait_poll_interval"`
	SwipeDuration        time.Duration `mapstructure:"swipe_duration" yaml:"swipe_duration"`
	AppCacheTTL          time.Duration `mapstructure:"app_cache_ttl" yaml:"app_cache_ttl"`
	// FuzzyMatchFloor is the minimum LCS ratio for a fuzzy app-label match.
	FuzzyMatchFloor float64 `mapstructure:"fuzzy_match_floor" yaml:"fuzzy_match_floor"`
}

// LLMProvider defines the supported language understanding providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig defines the configuration for the language understanding client.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	// RequestsPerSecond paces outbound calls; bursts of one.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// AutomationConfig selects and tunes the device automation backend.
type AutomationConfig struct {
	// ADBPath is the adb binary; resolved from PATH when empty.
	ADBPath string `mapstructure:"adb_path" yaml:"adb_path"`
	// DeviceSerial targets a specific device when several are attached.
	DeviceSerial string `mapstructure:"device_serial" yaml:"device_serial"`
	// CommandTimeout bounds a single adb invocation.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "android-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.planning_timeout", "30s")
	v.SetDefault("agent.similarity_threshold", 0.70)
	v.SetDefault("agent.always_preview", false)
	v.SetDefault("agent.auto_rollback", true)

	// -- Memory --
	v.SetDefault("memory.capacity", 5000)
	v.SetDefault("memory.match_threshold", 0.70)
	v.SetDefault("memory.update_threshold", 0.90)
	v.SetDefault("memory.sqlite_path", "")

	// -- Executor --
	v.SetDefault("executor.default_action_timeout", "10s")
	v.SetDefault("executor.click_retry_delay", "500ms")
	v.SetDefault("executor.input_focus_delay", "300ms")
	v.SetDefault("executor.wait_poll_interval", "500ms")
	v.SetDefault("executor.swipe_duration", "300ms")
	v.SetDefault("executor.app_cache_ttl", "60s")
	v.SetDefault("executor.fuzzy_match_floor", 0.60)

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.requests_per_second", 1.0)

	// -- Automation --
	v.SetDefault("automation.adb_path", "adb")
	v.SetDefault("automation.device_serial", "")
	v.SetDefault("automation.command_timeout", "15s")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads configuration from the given file (or the standard search
// locations when empty), layered over defaults and ANDROID_AGENT_* env vars.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".android-agent"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ANDROID_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults plus env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
