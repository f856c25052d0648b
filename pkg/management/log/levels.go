/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package log

import "go.uber.org/zap/zapcore"

// Log levels. The non-error levels are negative zap levels, so that
// they can be reached through logr verbosity.
const (
	ErrorLevel   = zapcore.ErrorLevel
	WarningLevel = zapcore.Level(-1)
	InfoLevel    = zapcore.Level(-2)
	DebugLevel   = zapcore.Level(-4)
	TraceLevel   = zapcore.Level(-5)

	DefaultLevel = InfoLevel
)

// Names of the log levels, as accepted by --log-level
const (
	ErrorLevelString   = "error"
	WarningLevelString = "warning"
	InfoLevelString    = "info"
	DebugLevelString   = "debug"
	TraceLevelString   = "trace"

	DefaultLevelString = InfoLevelString
)

func levelToVerbosity(level zapcore.Level) int {
	return -int(level)
}
