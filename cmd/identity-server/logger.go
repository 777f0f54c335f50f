package main

import (
	"time"

	"github.com/sirupsen/logrus"

	identity "github.com/fixcampus/go-identity"
)

// logrusAdapter exposes a logrus logger through the printf-style interface
// the identity package expects.
type logrusAdapter struct {
	log *logrus.Logger
}

func newLogger(debug bool) *logrusAdapter {
	log := logrus.New()

	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	return &logrusAdapter{log: log}
}

var _ identity.Logger = (*logrusAdapter)(nil)

func (l *logrusAdapter) Debug(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *logrusAdapter) Info(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *logrusAdapter) Warn(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *logrusAdapter) Error(format string, args ...any) { l.log.Errorf(format, args...) }
