package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.Mutex
	base *zap.Logger

	serviceName = "signal-engine"
)

// Init installs the process logger. Call once from wiring before anything logs.
func Init(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		// tests and tools that never call Init still get output
		base, _ = zap.NewProduction()
	}
	return base.With(zap.String("service", serviceName))
}

func Info(format string, args ...interface{}) {
	get().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	get().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	get().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	get().Fatal(fmt.Sprintf(format, args...))
}
