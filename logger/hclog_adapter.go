package logger

import (
	"github.com/hashicorp/go-hclog"
)

// hclogAdapter lets applications that already standardize on hclog back the
// tokenvault Logger interface with their existing logger.
type hclogAdapter struct {
	inner hclog.Logger
}

// FromHCLog wraps an hclog.Logger as a Logger.
func FromHCLog(inner hclog.Logger) Logger {
	return &hclogAdapter{inner: inner}
}

func fieldsToArgs(fields []Field) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		switch v := f.(type) {
		case stringField:
			args = append(args, v.key, v.value)
		case intField:
			args = append(args, v.key, v.value)
		case boolField:
			args = append(args, v.key, v.value)
		case durationField:
			args = append(args, v.key, v.value)
		case timeField:
			args = append(args, v.key, v.value)
		case errorField:
			args = append(args, "error", v.value)
		case stringsField:
			args = append(args, v.key, v.value)
		case anyField:
			args = append(args, v.key, v.value)
		}
	}
	return args
}

func (h *hclogAdapter) Trace(msg string, fields ...Field) {
	h.inner.Trace(msg, fieldsToArgs(fields)...)
}

func (h *hclogAdapter) Debug(msg string, fields ...Field) {
	h.inner.Debug(msg, fieldsToArgs(fields)...)
}

func (h *hclogAdapter) Info(msg string, fields ...Field) {
	h.inner.Info(msg, fieldsToArgs(fields)...)
}

func (h *hclogAdapter) Warn(msg string, fields ...Field) {
	h.inner.Warn(msg, fieldsToArgs(fields)...)
}

func (h *hclogAdapter) Error(msg string, fields ...Field) {
	h.inner.Error(msg, fieldsToArgs(fields)...)
}

func (h *hclogAdapter) WithSubsystem(name string) Logger {
	return &hclogAdapter{inner: h.inner.Named(name)}
}

func (h *hclogAdapter) WithFields(fields ...Field) Logger {
	return &hclogAdapter{inner: h.inner.With(fieldsToArgs(fields)...)}
}

func (h *hclogAdapter) IsLevelEnabled(level Level) bool {
	switch level {
	case TraceLevel:
		return h.inner.IsTrace()
	case DebugLevel:
		return h.inner.IsDebug()
	case InfoLevel:
		return h.inner.IsInfo()
	case WarnLevel:
		return h.inner.IsWarn()
	default:
		return h.inner.IsError()
	}
}
