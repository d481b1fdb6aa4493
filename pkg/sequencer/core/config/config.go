// Package config provides the configuration structures of the sequencing service
// and the loader that assembles them from embedded YAML, .env files and environment variables.
package config

import "time"

// EmbeddedConfig holds the content of the configuration file, typically embedded by main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the application logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// SQLLevel is the GORM logging level ("SILENT", "ERROR", "WARN", "INFO").
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address             string `yaml:"address"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	// Mode is the gin mode ("release", "debug", "test").
	Mode string `yaml:"mode"`
}

// ReadTimeout returns the read timeout as a duration.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// Repository selects the repository implementation ("sql" or "inmemory").
	Repository string `yaml:"repository"`
	// SequencerDBRef is the name of the database connection used by the repository.
	SequencerDBRef string `yaml:"sequencer_db_ref"`
	// ExportStorageRef is the name of the storage connection schedule exports are written to.
	ExportStorageRef string `yaml:"export_storage_ref"`
	// ExportBaseDir is the object prefix of schedule exports.
	ExportBaseDir string `yaml:"export_base_dir"`
	// ExportCompression is the Parquet compression codec ("SNAPPY", "GZIP", "UNCOMPRESSED").
	ExportCompression string `yaml:"export_compression"`
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	// MetricsBackend selects the metric recorder ("prometheus", "otel", "none").
	MetricsBackend string `yaml:"metrics_backend"`
	// TracesExporter selects the span exporter ("otlp-grpc", "otlp-http", "none").
	TracesExporter string `yaml:"traces_exporter"`
	// MetricsExporter selects the OTLP metric exporter when MetricsBackend is "otel" ("otlp-grpc", "otlp-http").
	MetricsExporter string `yaml:"metrics_exporter"`
	OTLPEndpoint    string `yaml:"otlp_endpoint"`
	OTLPInsecure    bool   `yaml:"otlp_insecure"`
	ServiceName     string `yaml:"service_name"`
	// MetricsAsyncBufferSize is the queue size of the asynchronous metric recorder.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// CapabilityConfig holds settings of the graph-recompute capability.
type CapabilityConfig struct {
	// TTLSeconds is how long an issued grant stays valid.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the grant lifetime as a duration.
func (c CapabilityConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SequencerConfig holds all configuration under the "sequencer" top-level key.
type SequencerConfig struct {
	System         SystemConfig         `yaml:"system"`
	Server         ServerConfig         `yaml:"server"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Capability     CapabilityConfig     `yaml:"capability"`
	// AdapterConfigs holds raw adapter configuration keyed by adapter kind
	// ("database", "storage") and then by connection name.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Sequencer SequencerConfig `yaml:"sequencer"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Sequencer: SequencerConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Server: ServerConfig{
				Address:             ":8080",
				ReadTimeoutSeconds:  15,
				WriteTimeoutSeconds: 30,
				Mode:                "release",
			},
			Infrastructure: InfrastructureConfig{
				Repository:        "sql",
				SequencerDBRef:    "sequencer",
				ExportStorageRef:  "exports",
				ExportBaseDir:     "schedules",
				ExportCompression: "SNAPPY",
			},
			Telemetry: TelemetryConfig{
				MetricsBackend:  "prometheus",
				TracesExporter:  "none",
				MetricsExporter: "otlp-grpc",
				ServiceName:     "sequencer",

				MetricsAsyncBufferSize: 256,
			},
			Capability:     CapabilityConfig{TTLSeconds: 60},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}

// AdapterSection returns the named connection configs of one adapter kind
// (e.g., "database"), or nil when the section is absent or malformed.
func (c *Config) AdapterSection(kind string) map[string]interface{} {
	raw, ok := c.Sequencer.AdapterConfigs[kind]
	if !ok {
		return nil
	}
	section, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return section
}
