package logger_test

import (
	"testing"

	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogLevel(t *testing.T) {
	defer logger.SetLogLevel("INFO")

	logger.SetLogLevel("debug")
	assert.Equal(t, logger.LevelDebug, logger.GetLogLevel())

	logger.SetLogLevel("WARN")
	assert.Equal(t, logger.LevelWarn, logger.GetLogLevel())

	logger.SetLogLevel("nonsense")
	assert.Equal(t, logger.LevelInfo, logger.GetLogLevel())
}

func TestSetLogger_RoutesPackageFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zap.New(core))

	logger.Infof("recalculated job %s", "job-1")
	logger.Warnf("dropped %d edges", 2)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "recalculated job job-1", entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}
