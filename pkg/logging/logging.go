// Package logging provides the package-level structured logger used
// throughout mlaunch, level-gated by the LOG_LEVEL environment variable.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. Use Log.WithField/WithFields to attach
// per-operation context (dir, port, role, pid) before logging a line.
var Log = logrus.New()

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	Log.SetLevel(levelFromEnv(os.Getenv("LOG_LEVEL")))
}

func levelFromEnv(raw string) logrus.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "info", "":
		return logrus.InfoLevel
	default:
		return logrus.InfoLevel
	}
}

// IsDebug reports whether debug-level logging is currently enabled.
func IsDebug() bool {
	return Log.IsLevelEnabled(logrus.DebugLevel)
}

// WithFields returns a logger entry carrying the given structured fields,
// the idiom used across the orchestrator/spawner/prober to tag log lines
// with the dir/port/role they concern.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
