package bpapp

import (
	"github.com/advdv/bpipe"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment. It writes JSON with ISO8601
// timestamps; BP_LOG_LEVEL controls the level.
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.base().LogLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logs, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logs.With(zap.String("service", env.base().ServiceName)), nil
}

func newPipelineLogger(l *zap.Logger) bpipe.Logger {
	return bpipe.NewZapLogger(l.Named("bpipe"))
}
