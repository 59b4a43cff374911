package logger

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

type Config struct {
	Level  string
	Format string // json, text
	Output string // stdout, stderr
}

func New(config *Config) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if config.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return &Logger{
		logger: logger,
		fields: make(logrus.Fields),
	}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	newFields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &Logger{logger: l.logger, fields: newFields}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{logger: l.logger, fields: newFields}
}

func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) WithUserID(userID primitive.ObjectID) *Logger {
	return l.WithField("user_id", userID.Hex())
}

func (l *Logger) WithRideID(rideID primitive.ObjectID) *Logger {
	return l.WithField("ride_id", rideID.Hex())
}

func (l *Logger) Debug(args ...interface{}) { l.entry().Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry().Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry().Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry().Error(args...) }
func (l *Logger) Fatal(args ...interface{}) { l.entry().Fatal(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry().Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry().Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry().Errorf(format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.entry().Fatalf(format, args...) }

func (l *Logger) entry() *logrus.Entry {
	return l.logger.WithFields(l.fields)
}
