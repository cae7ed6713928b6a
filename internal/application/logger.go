package application

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a development logger when development is set and a
// production JSON logger otherwise, at the given level.
func NewLogger(development bool, level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
