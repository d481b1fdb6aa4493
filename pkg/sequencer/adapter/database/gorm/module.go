package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	coreAdapter "github.com/tigerroll/sequencer/pkg/sequencer/core/adapter"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/tx"
)

// NewSequencerTransactionManager provides the transaction manager of the sequencer database connection.
func NewSequencerTransactionManager(resolver database.DBConnectionResolver, cfg *config.Config) tx.TransactionManager {
	return NewGormTransactionManager(resolver, cfg.Sequencer.Infrastructure.SequencerDBRef)
}

func registerResolverLifecycle(lc fx.Lifecycle, r *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
}

// Module exports the GORM resolver and transaction manager. Concrete providers live in
// the sqlite, postgres and mysql subpackages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Provide(func(r *GormDBConnectionResolver) coreAdapter.ResourceConnectionResolver { return r }),
	fx.Provide(NewSequencerTransactionManager),
	fx.Invoke(registerResolverLifecycle),
)
