package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc = func(format string, v ...interface{})

var current atomic.Pointer[logFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes a diagnostic line through the installed logger. It defaults to
// log.Printf and may be replaced by SetLogger, including while pipeline
// workers are logging.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	current.Store(&f)
}

// Tagged returns a logger that prefixes every line with "[tag] " and writes
// through Logf, so later SetLogger calls still apply.
func Tagged(tag string) func(format string, v ...interface{}) {
	prefix := "[" + tag + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
