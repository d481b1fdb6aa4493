package metrics

import (
	"go.uber.org/fx"
)

// Module aggregates the metrics listener components.
var Module = fx.Options(
	// The recorder selected by infrastructure/metrics is decorated to be asynchronous.
	fx.Decorate(NewAsyncMetricRecorderWrapper),
	fx.Provide(fx.Annotate(NewMetricsListener, fx.ResultTags(`group:"sequencingListeners"`))),
)
