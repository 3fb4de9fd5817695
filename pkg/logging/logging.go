// Package logging is the process-wide logger used for operator-facing text
// output. The Record Sink uses its own logrus instance for the structured
// JSON stream (see internal/sink); this package is for stderr/stdout status
// lines only, mirroring the console output original_source prints alongside
// its structured log.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetDebug flips the package logger to debug level. Call after flag.Parse
// so a -logging.debug flag (or equivalent) takes effect.
func SetDebug(debug bool) {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Logger is a narrow interface over the package-level functions, so a
// component can take a Logger instead of importing this package directly and
// tests can substitute a no-op or capturing logger. The components in this
// tree call the package-level functions directly.
type Logger interface {
	Info(a ...any)
	Infof(format string, v ...any)
	Error(a ...any)
	Errorf(format string, v ...any)
	Debug(a ...any)
	Debugf(format string, v ...any)
}

type pkgLogger struct{}

// Default returns the package-level Logger backed by the shared instance.
func Default() Logger { return pkgLogger{} }

func (pkgLogger) Info(a ...any)                   { Info(a...) }
func (pkgLogger) Infof(format string, v ...any)   { Infof(format, v...) }
func (pkgLogger) Error(a ...any)                  { Error(a...) }
func (pkgLogger) Errorf(format string, v ...any)  { Errorf(format, v...) }
func (pkgLogger) Debug(a ...any)                  { Debug(a...) }
func (pkgLogger) Debugf(format string, v ...any)  { Debugf(format, v...) }

func Info(a ...any) {
	logger.Info(fmt.Sprint(a...))
}

func Infof(format string, v ...any) {
	logger.Infof(format, v...)
}

func Error(a ...any) {
	logger.Error(fmt.Sprint(a...))
}

func Errorf(format string, v ...any) {
	logger.Errorf(format, v...)
}

func Debug(a ...any) {
	logger.Debug(fmt.Sprint(a...))
}

func Debugf(format string, v ...any) {
	logger.Debugf(format, v...)
}
