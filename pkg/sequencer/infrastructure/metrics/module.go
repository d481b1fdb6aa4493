package metrics

import (
	"context"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	metrics "github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"

	"go.uber.org/fx"
)

// NewTelemetryFromConfig builds Telemetry and flushes its exporters on shutdown.
func NewTelemetryFromConfig(lc fx.Lifecycle, cfg *config.TelemetryConfig) (*Telemetry, error) {
	t, err := NewTelemetry(context.Background(), *cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: t.Shutdown})
	return t, nil
}

// Module is an Fx module that provides the configured metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewTelemetryFromConfig),
	fx.Provide(func(t *Telemetry) metrics.MetricRecorder { return t.Recorder }),
	fx.Provide(func(t *Telemetry) metrics.Tracer { return t.Tracer }),
)
