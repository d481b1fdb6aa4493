package api

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/metrics"
)

// NewServerFromConfig builds the router and the server and ties them to the Fx lifecycle.
//
// Parameters:
//
//	lc: The Fx lifecycle the server's Start and Stop are appended to.
//	cfg: The server section of the configuration.
//	h: The route handler.
//	tel: The telemetry whose Prometheus handler, if any, is mounted at /metrics.
func NewServerFromConfig(lc fx.Lifecycle, cfg *config.ServerConfig, h *Handler, tel *metrics.Telemetry) *Server {
	setMode(cfg.Mode)
	s := NewServer(*cfg, NewRouter(h, tel.MetricsHandler()))
	lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
	return s
}

// Module is an Fx module that serves the sequencing API.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Provide(NewServerFromConfig),
	fx.Invoke(func(*Server) {}),
)
