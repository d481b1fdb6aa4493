package sqlite

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
)

// Module exports the SQLite DBProvider into the db_providers group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
		),
	),
)
