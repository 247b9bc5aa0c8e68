// Package logutil owns the process-wide zap logger. Call InitLogger
// once at startup, then GetLogger from anywhere.
package logutil

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// InitLogger builds the production logger. Safe to call more than once;
// only the first call wins.
func InitLogger() {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			// zap.NewProduction only fails on bad config; ours is fixed.
			panic(err)
		}
		logger = l
	})
}

// GetLogger returns the shared logger, initializing it on demand so
// library code and tests never get a nil logger.
func GetLogger() *zap.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}
