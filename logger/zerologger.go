package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func (f stringField) apply(e *zerolog.Event) *zerolog.Event   { return e.Str(f.key, f.value) }
func (f intField) apply(e *zerolog.Event) *zerolog.Event      { return e.Int(f.key, f.value) }
func (f boolField) apply(e *zerolog.Event) *zerolog.Event     { return e.Bool(f.key, f.value) }
func (f durationField) apply(e *zerolog.Event) *zerolog.Event { return e.Dur(f.key, f.value) }
func (f timeField) apply(e *zerolog.Event) *zerolog.Event     { return e.Time(f.key, f.value) }
func (f errorField) apply(e *zerolog.Event) *zerolog.Event    { return e.Err(f.value) }
func (f stringsField) apply(e *zerolog.Event) *zerolog.Event  { return e.Strs(f.key, f.value) }
func (f anyField) apply(e *zerolog.Event) *zerolog.Event      { return e.Interface(f.key, f.value) }

// zeroLogger implements Logger on top of zerolog.
type zeroLogger struct {
	logger zerolog.Logger
	level  Level
}

// New creates a zerolog-backed Logger from config.
func New(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var writers []io.Writer
	if config.FileConfig != nil {
		if err := os.MkdirAll(filepath.Dir(config.FileConfig.Filename), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   config.FileConfig.Filename,
				MaxSize:    config.FileConfig.MaxSize,
				MaxAge:     config.FileConfig.MaxAge,
				MaxBackups: config.FileConfig.MaxBackups,
				Compress:   config.FileConfig.Compress,
				LocalTime:  true,
			})
		}
	}
	for _, output := range config.Outputs {
		if config.JSON {
			writers = append(writers, output)
			continue
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		})
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(writer).Level(zerologLevel(config.Level)).With().Timestamp().Logger()
	return &zeroLogger{logger: zl, level: config.Level}
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zeroLogger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		event = f.apply(event)
	}
	event.Msg(msg)
}

func (z *zeroLogger) Trace(msg string, fields ...Field) { z.emit(z.logger.Trace(), msg, fields) }
func (z *zeroLogger) Debug(msg string, fields ...Field) { z.emit(z.logger.Debug(), msg, fields) }
func (z *zeroLogger) Info(msg string, fields ...Field)  { z.emit(z.logger.Info(), msg, fields) }
func (z *zeroLogger) Warn(msg string, fields ...Field)  { z.emit(z.logger.Warn(), msg, fields) }
func (z *zeroLogger) Error(msg string, fields ...Field) { z.emit(z.logger.Error(), msg, fields) }

func (z *zeroLogger) WithSubsystem(name string) Logger {
	return &zeroLogger{
		logger: z.logger.With().Str("subsystem", name).Logger(),
		level:  z.level,
	}
}

func (z *zeroLogger) WithFields(fields ...Field) Logger {
	// Applying fields through a single throwaway event is not possible with
	// zerolog contexts, so rebuild via a child context.
	ctx := z.logger.With()
	for _, f := range fields {
		switch v := f.(type) {
		case stringField:
			ctx = ctx.Str(v.key, v.value)
		case intField:
			ctx = ctx.Int(v.key, v.value)
		case boolField:
			ctx = ctx.Bool(v.key, v.value)
		case durationField:
			ctx = ctx.Dur(v.key, v.value)
		case timeField:
			ctx = ctx.Time(v.key, v.value)
		case errorField:
			ctx = ctx.Err(v.value)
		case stringsField:
			ctx = ctx.Strs(v.key, v.value)
		case anyField:
			ctx = ctx.Interface(v.key, v.value)
		}
	}
	return &zeroLogger{logger: ctx.Logger(), level: z.level}
}

func (z *zeroLogger) IsLevelEnabled(level Level) bool {
	return level >= z.level
}
