package gcs

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage"
)

// Module exports the GCS StorageProvider into the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.ResultTags(`group:"`+storage.ProviderGroup+`"`),
	)),
)
