// SPDX-License-Identifier: Apache-2.0

// Package log holds the logger shared by the negotiation engine, the
// Kerberos mechanism and the transport drivers.
//
// Logging is disabled unless GSS_SASL_DEBUG is set to one of debug, info,
// warn or error.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvDebug names the environment variable that enables logging.
const EnvDebug = "GSS_SASL_DEBUG"

// Fields is an alias so callers need not import logrus directly.
type Fields = logrus.Fields

var (
	logger *logrus.Logger
	once   sync.Once
)

func initialize() {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.PanicLevel)

		level := os.Getenv(EnvDebug)
		if level == "" {
			return
		}

		logger.SetOutput(os.Stderr)
		switch strings.ToLower(level) {
		case "info":
			logger.SetLevel(logrus.InfoLevel)
		case "warn":
			logger.SetLevel(logrus.WarnLevel)
		case "error":
			logger.SetLevel(logrus.ErrorLevel)
		default:
			logger.SetLevel(logrus.DebugLevel)
		}
		logger.WithField("level", logger.GetLevel()).Debug("logging_enabled")
	})
}

// Get returns the package logger.
func Get() *logrus.Logger {
	initialize()
	return logger
}

// SetOutput redirects log output and sets the level, overriding the
// environment. The CLI uses this for its --debug flag.
func SetOutput(w io.Writer, level logrus.Level) {
	initialize()
	logger.SetOutput(w)
	logger.SetLevel(level)
}
