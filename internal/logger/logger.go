package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	instance *zap.SugaredLogger
	initErr  error
	once     sync.Once
)

type Config struct {
	Development bool
}

// New builds the process-wide sugared logger. Subsequent calls return the
// same instance (or the same init error) regardless of config.
func New(cfg Config) (*zap.SugaredLogger, error) {
	once.Do(func() {
		var l *zap.Logger
		if cfg.Development {
			l, initErr = zap.NewDevelopment()
		} else {
			l, initErr = zap.NewProduction()
		}
		if initErr != nil {
			return
		}
		instance = l.Sugar()
	})
	return instance, initErr
}
