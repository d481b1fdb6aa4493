package listener

import (
	"go.uber.org/fx"
)

// CompositeParams receives every listener provided into the "sequencingListeners" group.
type CompositeParams struct {
	fx.In
	Listeners []SequencingListener `group:"sequencingListeners"`
}

// NewCompositeFromGroup builds the Composite the use cases notify.
func NewCompositeFromGroup(p CompositeParams) SequencingListener {
	return NewComposite(p.Listeners...)
}

// Module provides the composite SequencingListener. Member modules live in the
// logging and metrics subpackages.
var Module = fx.Options(
	fx.Provide(NewCompositeFromGroup),
)
