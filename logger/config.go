package logger

import (
	"go.uber.org/zap/zapcore"
)

// Config selects the format and level of the process logger.
type Config struct {
	// Format is one of auto, logfmt, json or console. Auto picks console
	// when writing to a terminal and logfmt otherwise.
	Format string        `toml:"format"`
	Level  zapcore.Level `toml:"level"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
		Level:  zapcore.InfoLevel,
	}
}
