package logging

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// LeveledLogger adapts a zap logger to retryablehttp.
type LeveledLogger struct {
	logger *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = (*LeveledLogger)(nil)

func NewLeveledLogger(logger *zap.Logger) *LeveledLogger {
	return &LeveledLogger{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

// Debug-level messages of retryablehttp are emitted for every request.
func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}
