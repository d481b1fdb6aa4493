package local

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage"
)

// Module exports the local StorageProvider into the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.ResultTags(`group:"`+storage.ProviderGroup+`"`),
	)),
)
