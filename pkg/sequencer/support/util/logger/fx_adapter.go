package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter implements fxevent.Logger on top of the package-level logger.
// Successful wiring events are logged at DEBUG, failures at ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new instance of FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs events from Fx.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("fx: OnStart %s (caller %s)", shortFuncName(e.FunctionName), shortFuncName(e.CallerName))
	case *fxevent.OnStartExecuted:
		logHookResult("OnStart", e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		Debugf("fx: OnStop %s (caller %s)", shortFuncName(e.FunctionName), shortFuncName(e.CallerName))
	case *fxevent.OnStopExecuted:
		logHookResult("OnStop", e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("fx: supply %s failed: %v", e.TypeName, e.Err)
			return
		}
		Debugf("fx: supplied %s", e.TypeName)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("fx: provide %s failed: %v", shortFuncName(e.ConstructorName), e.Err)
			return
		}
		Debugf("fx: provided %s by %s", strings.Join(e.OutputTypeNames, ", "), shortFuncName(e.ConstructorName))
	case *fxevent.Decorated:
		if e.Err != nil {
			Errorf("fx: decorate %s failed: %v", shortFuncName(e.DecoratorName), e.Err)
		}
	case *fxevent.Invoking:
		Debugf("fx: invoking %s", shortFuncName(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("fx: invoke %s failed: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Infof("fx: received %s, stopping", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("fx: stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("fx: start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("fx: rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
			return
		}
		Infof("Sequencer application started.")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("fx: logger initialization failed: %v", e.Err)
			return
		}
		Debugf("fx: logger %s initialized", shortFuncName(e.ConstructorName))
	}
}

func logHookResult(hook, funcName, runtime string, err error) {
	if err != nil {
		Errorf("fx: %s hook %s failed: %v", hook, shortFuncName(funcName), err)
		return
	}
	Debugf("fx: %s hook %s done in %s", hook, shortFuncName(funcName), runtime)
}

// shortFuncName strips anonymous function suffixes such as ".func1" so the
// enclosing constructor name is reported.
func shortFuncName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
