package logger

import (
	"io"
	"os"
)

// Config holds the configuration for the zerolog-backed logger.
type Config struct {
	Level   Level
	JSON    bool // JSON output instead of console formatting
	Outputs []io.Writer
	// FileConfig enables rotating file output when set.
	FileConfig *FileConfig
}

// FileConfig configures rotating file output.
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// DefaultConfig returns a console logger on stderr at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:   InfoLevel,
		Outputs: []io.Writer{os.Stderr},
	}
}

// TestConfig returns a trace-level console logger, handy in tests.
func TestConfig() *Config {
	return &Config{
		Level:   TraceLevel,
		Outputs: []io.Writer{os.Stderr},
	}
}
