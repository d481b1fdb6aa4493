package logger

import "go.uber.org/fx"

// Module is an Fx module that routes Fx lifecycle events into the logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
