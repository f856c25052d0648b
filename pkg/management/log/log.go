/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package log contains the logging subsystem of the rollout manager
package log

import (
	"context"

	"github.com/go-logr/logr"
)

// Logger is the logging interface used across the rollout manager. It
// adds the warning, debug and trace levels on top of logr.
type Logger interface {
	Enabled() bool
	Error(err error, msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warning(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Trace(msg string, keysAndValues ...interface{})

	WithValues(keysAndValues ...interface{}) Logger
	WithName(name string) Logger
	GetLogger() logr.Logger
}

type logger struct {
	logr.Logger
}

type contextKey struct{}

var log Logger = &logger{logr.Discard()}

// SetLogger will set the backing logr implementation for the rollout manager
func SetLogger(logr logr.Logger) {
	log = &logger{logr}
}

// GetLogger returns the default logger
func GetLogger() Logger {
	return log
}

func (l *logger) GetLogger() logr.Logger {
	return l.Logger
}

func (l *logger) Enabled() bool {
	return l.Logger.GetSink() != nil && l.Logger.Enabled()
}

func (l *logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(err, msg, keysAndValues...)
}

func (l *logger) Warning(msg string, keysAndValues ...interface{}) {
	l.Logger.V(levelToVerbosity(WarningLevel)).Info(msg, keysAndValues...)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.V(levelToVerbosity(InfoLevel)).Info(msg, keysAndValues...)
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.V(levelToVerbosity(DebugLevel)).Info(msg, keysAndValues...)
}

func (l *logger) Trace(msg string, keysAndValues ...interface{}) {
	l.Logger.V(levelToVerbosity(TraceLevel)).Info(msg, keysAndValues...)
}

func (l *logger) WithValues(keysAndValues ...interface{}) Logger {
	return &logger{l.Logger.WithValues(keysAndValues...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{l.Logger.WithName(name)}
}

// FromContext returns the logger stored in the context, or the
// default one when missing
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return log
	}
	if contextLogger, ok := ctx.Value(contextKey{}).(Logger); ok {
		return contextLogger
	}
	return log
}

// IntoContext stores a logger in a context
func IntoContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// SetupLogger returns the logger stored in the context, making sure the
// returned context carries it too
func SetupLogger(ctx context.Context) (Logger, context.Context) {
	contextLogger := FromContext(ctx)
	return contextLogger, IntoContext(ctx, contextLogger)
}

// Error logs an error with the default logger
func Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error(err, msg, keysAndValues...)
}

// Info logs with the default logger
func Info(msg string, keysAndValues ...interface{}) {
	log.Info(msg, keysAndValues...)
}

// Warning logs a warning with the default logger
func Warning(msg string, keysAndValues ...interface{}) {
	log.Warning(msg, keysAndValues...)
}

// Debug logs a debug message with the default logger
func Debug(msg string, keysAndValues ...interface{}) {
	log.Debug(msg, keysAndValues...)
}

// Trace logs a trace message with the default logger
func Trace(msg string, keysAndValues ...interface{}) {
	log.Trace(msg, keysAndValues...)
}

// WithName returns a named child of the default logger
func WithName(name string) Logger {
	return log.WithName(name)
}

// WithValues returns a child of the default logger with the passed values
func WithValues(keysAndValues ...interface{}) Logger {
	return log.WithValues(keysAndValues...)
}
