package telemetry

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is the operational log used by server components. Gameplay events
// go through logging.Publisher instead.
type Logger interface {
	Printf(format string, args ...any)
}

// Metrics receives counter updates. *Counters implements it.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

var _ Metrics = (*Counters)(nil)

// WrapMetrics returns counters as Metrics, or a no-op when counters is nil.
func WrapMetrics(counters *Counters) Metrics {
	if counters == nil {
		return nopMetrics{}
	}
	return counters
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// WrapZap adapts a zap logger to Logger. Components prefix their messages
// with a bracketed name such as "[loot]"; the prefix becomes the
// "component" field and is stripped from the message.
func WrapZap(logger *zap.Logger) Logger {
	if logger == nil {
		return zapLogger{}
	}
	return zapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (z zapLogger) Printf(format string, args ...any) {
	if z.sugar == nil {
		return
	}
	component, rest := splitComponent(format)
	if component == "" {
		z.sugar.Infof(format, args...)
		return
	}
	z.sugar.With("component", component).Infof(rest, args...)
}

func splitComponent(format string) (string, string) {
	if !strings.HasPrefix(format, "[") {
		return "", format
	}
	end := strings.IndexByte(format, ']')
	if end <= 1 || strings.ContainsAny(format[1:end], "% ") {
		return "", format
	}
	return format[1:end], strings.TrimLeft(format[end+1:], " ")
}
