package config

// Grammar defaults.
const (
	DefaultGrammarPath      = ""
	DefaultStrictSchema     = true
	DefaultGrammarCacheSize = 16
	DefaultGrammarWatch     = true
)

// Engine defaults.
const (
	DefaultMaxIterations = 100
)

// Check defaults.
const (
	DefaultCheckWorkers = 4
)

// Telemetry defaults.
const (
	DefaultSampleRatio = 1.0
)
