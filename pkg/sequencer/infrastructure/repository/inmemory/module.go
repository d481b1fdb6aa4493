package inmemory

import (
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"

	"go.uber.org/fx"
)

// Module is an Fx module that provides InMemorySequencingRepository as a repository.SequencingRepository.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemorySequencingRepository,
			fx.As(new(repository.SequencingRepository)),
		),
	),
)
