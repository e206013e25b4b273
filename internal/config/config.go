package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Screen   ScreenConfig   `mapstructure:"screen" yaml:"screen"`
	Voice    VoiceConfig    `mapstructure:"voice" yaml:"voice"`
}

// LoggerConfig controls the zap logger construction.
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

// BackendProvider identifies a supported inference backend.
type BackendProvider string

const (
	ProviderOllama BackendProvider = "ollama"
)

// BackendConfig describes the local inference backend used for plan synthesis.
type BackendConfig struct {
	Provider BackendProvider `mapstructure:"provider" yaml:"provider"`
	// Model is the pinned model identifier, fetched once if absent locally.
	Model    string        `mapstructure:"model" yaml:"model"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	// ProbeTimeout bounds the liveness probe (list-models call).
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	// GenerateTimeout is the hard deadline for one synthesis call.
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" yaml:"generate_timeout"`
	// PullTimeout bounds the one-time model fetch.
	PullTimeout time.Duration `mapstructure:"pull_timeout" yaml:"pull_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
}

// ResolverConfig tunes intent resolution. The keyword tables are a replaceable
// policy, not a load-bearing contract.
type ResolverConfig struct {
	VisionEnabled bool `mapstructure:"vision_enabled" yaml:"vision_enabled"`
	// ComplexityConnectives flag multi-step instructions ("then", "and", ...).
	ComplexityConnectives []string `mapstructure:"complexity_connectives" yaml:"complexity_connectives"`
	// ComplexityVerbs flag state-changing verbs not covered by fixed patterns.
	ComplexityVerbs []string `mapstructure:"complexity_verbs" yaml:"complexity_verbs"`
}

// ExecutorConfig tunes plan execution pacing.
type ExecutorConfig struct {
	// OpenSettle is the fixed delay after open_url/launch steps so the target
	// can load before the next step runs.
	OpenSettle time.Duration `mapstructure:"open_settle" yaml:"open_settle"`
	// InputSettle is the brief delay after type/press_key steps.
	InputSettle time.Duration `mapstructure:"input_settle" yaml:"input_settle"`
	// DefaultWait applies to wait steps with no duration.
	DefaultWait time.Duration `mapstructure:"default_wait" yaml:"default_wait"`
	// InterKeyDelay paces synthetic keystrokes.
	InterKeyDelay time.Duration `mapstructure:"inter_key_delay" yaml:"inter_key_delay"`
}

// ScreenConfig tunes the screen analyzer.
type ScreenConfig struct {
	// CacheSize is the number of historical snapshots retained. The cache is
	// diagnostic only; current-state requests always capture fresh.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
	// OCRExcerptLimit caps the OCR text forwarded to the synthesizer prompt.
	OCRExcerptLimit int `mapstructure:"ocr_excerpt_limit" yaml:"ocr_excerpt_limit"`
	// ElementDigestLimit caps detected elements per category in the prompt.
	ElementDigestLimit int `mapstructure:"element_digest_limit" yaml:"element_digest_limit"`
	// MinConfidence discards OCR fragments below this confidence.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	// DisplayWidth and DisplayHeight approximate the primary display geometry.
	// Coordinate macros (sheet title click, drawing) derive center points from
	// these when no live capture is available.
	DisplayWidth  int `mapstructure:"display_width" yaml:"display_width"`
	DisplayHeight int `mapstructure:"display_height" yaml:"display_height"`
}

// VoiceConfig tunes the voice listen cycle.
type VoiceConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	ListenTimeout time.Duration `mapstructure:"listen_timeout" yaml:"listen_timeout"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "promptpilot")
	v.SetDefault("logger.log_file", "promptpilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Backend --
	v.SetDefault("backend.provider", "ollama")
	v.SetDefault("backend.model", "llama3.2:3b")
	v.SetDefault("backend.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("backend.probe_timeout", "5s")
	v.SetDefault("backend.generate_timeout", "30s")
	v.SetDefault("backend.pull_timeout", "5m")
	v.SetDefault("backend.temperature", 0.2)

	// -- Resolver --
	v.SetDefault("resolver.vision_enabled", true)
	v.SetDefault("resolver.complexity_connectives", []string{"then", "and", "after", "next"})
	v.SetDefault("resolver.complexity_verbs", []string{"create", "build", "configure", "add", "remove", "update"})

	// -- Executor --
	v.SetDefault("executor.open_settle", "2s")
	v.SetDefault("executor.input_settle", "300ms")
	v.SetDefault("executor.default_wait", "2s")
	v.SetDefault("executor.inter_key_delay", "50ms")

	// -- Screen --
	v.SetDefault("screen.cache_size", 3)
	v.SetDefault("screen.ocr_excerpt_limit", 1000)
	v.SetDefault("screen.element_digest_limit", 10)
	v.SetDefault("screen.min_confidence", 0.0)
	v.SetDefault("screen.display_width", 1920)
	v.SetDefault("screen.display_height", 1080)

	// -- Voice --
	v.SetDefault("voice.enabled", false)
	v.SetDefault("voice.listen_timeout", "5s")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Backend.Provider != ProviderOllama {
		return fmt.Errorf("unsupported backend provider %q", c.Backend.Provider)
	}
	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if c.Backend.GenerateTimeout <= 0 {
		return fmt.Errorf("backend.generate_timeout must be positive")
	}
	if c.Backend.ProbeTimeout <= 0 {
		return fmt.Errorf("backend.probe_timeout must be positive")
	}
	if c.Screen.CacheSize <= 0 {
		return fmt.Errorf("screen.cache_size must be positive")
	}
	if c.Screen.OCRExcerptLimit <= 0 {
		return fmt.Errorf("screen.ocr_excerpt_limit must be positive")
	}
	if c.Executor.DefaultWait <= 0 {
		return fmt.Errorf("executor.default_wait must be positive")
	}
	return nil
}
