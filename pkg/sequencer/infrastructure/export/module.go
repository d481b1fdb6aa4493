package export

import (
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"

	"go.uber.org/fx"
)

// Module provides the Parquet schedule exporter as usecase.ScheduleExporter.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewScheduleExporter,
		fx.As(new(usecase.ScheduleExporter)),
	)),
)
