package logging

import (
	"go.uber.org/fx"
)

// Module provides the logging listener into the "sequencingListeners" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingListener, fx.ResultTags(`group:"sequencingListeners"`))),
)
