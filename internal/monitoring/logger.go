// Package monitoring holds the process-wide diagnostic logger shared by the
// analyser, transport and recorder packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a warning marker so coerced input and other
// recoverable conditions stand out in the service log.
func Warnf(format string, v ...interface{}) {
	Logf("⚠️  "+format, v...)
}
