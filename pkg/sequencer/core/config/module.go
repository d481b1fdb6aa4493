package config

import "go.uber.org/fx"

// NewServerConfigProvider extracts *ServerConfig from *Config.
func NewServerConfigProvider(cfg *Config) *ServerConfig {
	return &cfg.Sequencer.Server
}

// NewTelemetryConfigProvider extracts *TelemetryConfig from *Config.
func NewTelemetryConfigProvider(cfg *Config) *TelemetryConfig {
	return &cfg.Sequencer.Telemetry
}

// Module provides the configuration sections components depend on. The *Config itself
// is loaded with LoadConfig and supplied by the application.
var Module = fx.Options(
	fx.Provide(NewServerConfigProvider),
	fx.Provide(NewTelemetryConfigProvider),
)
