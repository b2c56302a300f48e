package logger

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronLogger adapts zap to the cron.Logger interface
type CronLogger struct {
	sugar *zap.SugaredLogger
}

var _ cron.Logger = (*CronLogger)(nil)

// NewCronLogger creates a cron logger writing through l
func NewCronLogger(l *zap.Logger) *CronLogger {
	return &CronLogger{sugar: l.Named("cron").Sugar()}
}

// Info logs routine scheduler activity at debug; cron is chatty on every tick.
func (c *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.sugar.Debugw(msg, keysAndValues...)
}

func (c *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
