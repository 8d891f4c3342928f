// Package config provides configuration loading and validation for querycheck.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidParser     = errors.New("unknown parser backend")
	ErrInvalidFormat     = errors.New("unknown output format")
	ErrInvalidWorkers    = errors.New("check workers must be positive")
	ErrInvalidIterations = errors.New("engine max iterations must be positive")
	ErrInvalidCacheSize  = errors.New("grammar cache size must be positive")
	ErrInvalidLogLevel   = errors.New("unknown log level")
	ErrInvalidLogFormat  = errors.New("unknown log format")
	ErrInvalidSampling   = errors.New("telemetry sample ratio must be within [0, 1]")
)

// Parser backends.
const (
	ParserTreeSitter = "treesitter"
	ParserNative     = "native"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUERYCHECK"

// Config holds all configuration for querycheck.
type Config struct {
	Grammar   GrammarConfig   `mapstructure:"grammar"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Check     CheckConfig     `mapstructure:"check"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GrammarConfig controls where grammars come from and how they are kept.
type GrammarConfig struct {
	// Path is the grammar used when no language can be inferred.
	Path string `mapstructure:"path"`
	// SearchPaths are directories holding <lang>/src/grammar.json or <lang>/grammar.json.
	SearchPaths []string `mapstructure:"search_paths"`
	// Languages maps a language name to its grammar file.
	Languages    map[string]string `mapstructure:"languages"`
	StrictSchema bool              `mapstructure:"strict_schema"`
	CacheSize    int               `mapstructure:"cache_size"`
	Watch        bool              `mapstructure:"watch"`
}

// EngineConfig holds diagnostic engine settings.
type EngineConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	Parser        string `mapstructure:"parser"`
}

// CheckConfig holds settings of the check command.
type CheckConfig struct {
	Workers int    `mapstructure:"workers"`
	Format  string `mapstructure:"format"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	PrometheusAddr string  `mapstructure:"prometheus_addr"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches the default locations; a missing file there
// is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("querycheck")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/querycheck")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := Validate(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("grammar.path", DefaultGrammarPath)
	viperCfg.SetDefault("grammar.search_paths", []string{})
	viperCfg.SetDefault("grammar.languages", map[string]string{})
	viperCfg.SetDefault("grammar.strict_schema", DefaultStrictSchema)
	viperCfg.SetDefault("grammar.cache_size", DefaultGrammarCacheSize)
	viperCfg.SetDefault("grammar.watch", DefaultGrammarWatch)

	viperCfg.SetDefault("engine.max_iterations", DefaultMaxIterations)
	viperCfg.SetDefault("engine.parser", ParserTreeSitter)

	viperCfg.SetDefault("check.workers", DefaultCheckWorkers)
	viperCfg.SetDefault("check.format", FormatText)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.prometheus_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
}

// Validate checks every enumerated and numeric setting.
func Validate(config *Config) error {
	if !slices.Contains([]string{ParserTreeSitter, ParserNative}, config.Engine.Parser) {
		return fmt.Errorf("%w: %q", ErrInvalidParser, config.Engine.Parser)
	}

	if !slices.Contains([]string{FormatText, FormatJSON, FormatYAML, FormatTable}, config.Check.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, config.Check.Format)
	}

	if config.Check.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Check.Workers)
	}

	if config.Engine.MaxIterations <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIterations, config.Engine.MaxIterations)
	}

	if config.Grammar.CacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.Grammar.CacheSize)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if !slices.Contains([]string{"text", "json"}, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampling, config.Telemetry.SampleRatio)
	}

	return nil
}
