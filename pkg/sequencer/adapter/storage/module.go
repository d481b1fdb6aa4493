package storage

import (
	"context"

	"go.uber.org/fx"
)

func registerResolverLifecycle(lc fx.Lifecycle, r *ConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
}

// Module exports the storage resolver. Backends live in the local and gcs subpackages.
var Module = fx.Options(
	fx.Provide(NewConnectionResolver),
	fx.Provide(func(r *ConnectionResolver) StorageConnectionResolver { return r }),
	fx.Invoke(registerResolverLifecycle),
)
