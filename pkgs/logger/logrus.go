package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger is a Logger implementation backed by sirupsen/logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus creates a Logger that writes structured, leveled output to stderr.
func NewLogrus() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// SetToDebug sets the logger's level to debug.
func (l *LogrusLogger) SetToDebug() { l.entry.Logger.SetLevel(logrus.DebugLevel) }

// SetToInfo sets the logger's level to info.
func (l *LogrusLogger) SetToInfo() { l.entry.Logger.SetLevel(logrus.InfoLevel) }

// SetToError sets the logger's level to error.
func (l *LogrusLogger) SetToError() { l.entry.Logger.SetLevel(logrus.ErrorLevel) }

// Module returns a child logger namespaced under ns.
func (l *LogrusLogger) Module(ns string) Logger {
	return &LogrusLogger{entry: l.entry.WithField("module", ns)}
}

func fields(keyValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keyValues[i+1]
	}
	return f
}

// Debug logs msg at debug level with the given key-value pairs.
func (l *LogrusLogger) Debug(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Debug(msg)
}

// Info logs msg at info level with the given key-value pairs.
func (l *LogrusLogger) Info(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Info(msg)
}

// Error logs msg at error level with the given key-value pairs.
func (l *LogrusLogger) Error(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Error(msg)
}

// Fatal logs msg at fatal level then exits the process.
func (l *LogrusLogger) Fatal(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Fatal(msg)
}

// Warn logs msg at warn level with the given key-value pairs.
func (l *LogrusLogger) Warn(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Warn(msg)
}
