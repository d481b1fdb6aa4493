package migration

import "go.uber.org/fx"

// Module provides the Migrator of the sequencer database connection.
var Module = fx.Options(
	fx.Provide(NewSequencerMigrator),
)
