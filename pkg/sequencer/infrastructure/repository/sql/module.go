package sql

import (
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/tx"

	"go.uber.org/fx"
)

// NewSequencerRepository provides the repository of the configured sequencer connection.
func NewSequencerRepository(resolver database.DBConnectionResolver, txManager tx.TransactionManager, cfg *config.Config) *SQLSequencingRepository {
	return NewSQLSequencingRepository(resolver, txManager, cfg.Sequencer.Infrastructure.SequencerDBRef)
}

// Module is an Fx module that provides SQLSequencingRepository as a repository.SequencingRepository.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewSequencerRepository,
			fx.As(new(repository.SequencingRepository)),
		),
	),
)
