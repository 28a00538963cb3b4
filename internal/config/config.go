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

// Provider names the supported LLM backends.
type Provider string

const ProviderGemini Provider = "gemini"

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the headless Chrome instance and the wait budgets
// the executor operates under.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// ActionTimeout bounds the wait for an element to become actionable.
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// DropdownTimeout bounds the shorter sub-waits inside select handling.
	DropdownTimeout time.Duration `mapstructure:"dropdown_timeout" yaml:"dropdown_timeout"`
	// SettleDelay is the fixed pause inserted after every step.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// AgentConfig holds the LLM side of the pipeline.
type AgentConfig struct {
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig configures the model used for locator resolution.
type LLMConfig struct {
	Provider          Provider      `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// SnapshotMaxBytes caps the sanitized DOM snapshot sent with each request.
	SnapshotMaxBytes int `mapstructure:"snapshot_max_bytes" yaml:"snapshot_max_bytes"`
}

// CacheConfig controls the on-disk selector cache.
type CacheConfig struct {
	// Dir is where cache files live. Empty means ~/.kestrel/selectors.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Disabled forces a model resolution for every step.
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
}

// RunnerConfig controls scenario scheduling.
type RunnerConfig struct {
	// Parallelism is the number of scenarios executed concurrently.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
}

// NewDefaultConfig returns a config with every default applied.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "kestrel",
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
			Colors: ColorConfig{
				Debug: "cyan",
				Info:  "green",
				Warn:  "yellow",
				Error: "red",
				Fatal: "magenta",
			},
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ActionTimeout:     5 * time.Second,
			DropdownTimeout:   2 * time.Second,
			SettleDelay:       300 * time.Millisecond,
		},
		Agent: AgentConfig{
			LLM: LLMConfig{
				Provider:          ProviderGemini,
				Model:             "gemini-2.0-flash",
				Temperature:       0.1,
				MaxTokens:         1024,
				RequestTimeout:    90 * time.Second,
				RequestsPerMinute: 30,
				SnapshotMaxBytes:  200_000,
			},
		},
		Runner: RunnerConfig{Parallelism: 1},
	}
}

// Load reads configuration from the given file (or the working directory's
// config.yaml), layers KESTREL_ environment variables over it, and unmarshals
// into a validated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults plus environment variables apply.
	}

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be positive")
	}
	if c.Browser.DropdownTimeout <= 0 {
		return fmt.Errorf("browser.dropdown_timeout must be positive")
	}
	if c.Runner.Parallelism <= 0 {
		return fmt.Errorf("runner.parallelism must be a positive integer")
	}
	switch c.Agent.LLM.Provider {
	case ProviderGemini:
	default:
		return fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]",
			c.Agent.LLM.Provider, ProviderGemini)
	}
	if c.Agent.LLM.Model == "" {
		return fmt.Errorf("agent.llm.model is required")
	}
	return nil
}

// CacheDir resolves the selector cache directory, defaulting under the user
// home when unset.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory for cache: %w", err)
	}
	return filepath.Join(home, ".kestrel", "selectors"), nil
}
