// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Logger provides a simple printf-style logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Named(name string) Logger
}

type defaultLogger struct {
	hl hclog.Logger
}

// New returns a logger named prefix at the level given by LOG_LEVEL (default info).
func New(prefix string) Logger {
	return NewWithLevel(prefix, os.Getenv("LOG_LEVEL"))
}

// NewWithLevel returns a logger writing to stderr at the given level.
func NewWithLevel(prefix, level string) Logger {
	return NewWithWriter(prefix, level, os.Stderr)
}

// NewWithWriter is NewWithLevel with an explicit output.
func NewWithWriter(prefix, level string, w io.Writer) Logger {
	return &defaultLogger{
		hl: hclog.New(&hclog.LoggerOptions{
			Name:   prefix,
			Level:  ParseLevel(level),
			Output: w,
		}),
	}
}

// Nop discards everything.
func Nop() Logger {
	return &defaultLogger{hl: hclog.NewNullLogger()}
}

// ParseLevel maps a config string to an hclog level. Unknown values mean info.
func ParseLevel(level string) hclog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.hl.Info(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.hl.Warn(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.hl.Error(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if !l.hl.IsDebug() && !l.hl.IsTrace() {
		return
	}
	l.hl.Debug(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Named(name string) Logger {
	return &defaultLogger{hl: l.hl.Named(name)}
}
