/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

package log

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Flags contains the set of values necessary
// for configuring the logging of the manager
type Flags struct {
	zapOptions zap.Options

	logLevel       string
	logDestination string
}

// AddFlags binds the logging flags to a given flagset
func (l *Flags) AddFlags(flags *pflag.FlagSet) {
	loggingFlagSet := &flag.FlagSet{}
	loggingFlagSet.StringVar(&l.logLevel, "log-level", DefaultLevelString,
		"the desired log level, one of error, warning, info, debug and trace")
	loggingFlagSet.StringVar(&l.logDestination, "log-destination", "",
		"where the log stream will be written")
	l.zapOptions.BindFlags(loggingFlagSet)
	flags.AddGoFlagSet(loggingFlagSet)
}

// ConfigureLogging configure the logging honoring the flags
// passed from the user
func (l *Flags) ConfigureLogging() {
	logger := zap.New(zap.UseFlagOptions(&l.zapOptions), l.customLevel, l.customDestination)
	if _, known := parseLevel(l.logLevel); !known {
		logger.Info("Invalid log level, defaulting", "level", l.logLevel, "default", DefaultLevelString)
	}

	controllerruntime.SetLogger(logger)
	klog.SetLogger(logger)
	SetLogger(logger)
}

func parseLevel(l string) (zapcore.Level, bool) {
	switch l {
	case ErrorLevelString:
		return ErrorLevel, true
	case WarningLevelString:
		return WarningLevel, true
	case InfoLevelString:
		return InfoLevel, true
	case DebugLevelString:
		return DebugLevel, true
	case TraceLevelString:
		return TraceLevel, true
	default:
		return DefaultLevel, false
	}
}

func levelString(l zapcore.Level) string {
	switch l {
	case ErrorLevel:
		return ErrorLevelString
	case WarningLevel:
		return WarningLevelString
	case InfoLevel:
		return InfoLevelString
	case DebugLevel:
		return DebugLevelString
	case TraceLevel:
		return TraceLevelString
	default:
		return DefaultLevelString
	}
}

func (l *Flags) customLevel(in *zap.Options) {
	level, _ := parseLevel(l.logLevel)
	in.Level = level
	in.EncoderConfigOptions = append(in.EncoderConfigOptions, func(c *zapcore.EncoderConfig) {
		c.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(levelString(l))
		}
	})
}

func (l *Flags) customDestination(in *zap.Options) {
	if l.logDestination == "" {
		return
	}

	logStream, err := os.OpenFile(l.logDestination, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600) //#nosec
	if err != nil {
		panic(fmt.Sprintf("Cannot open log destination %v: %v", l.logDestination, err))
	}

	in.DestWriter = logStream
}
