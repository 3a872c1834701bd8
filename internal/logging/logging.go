// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/logging/logging.go
// Summary: Structured logging setup, threaded via constructors rather than a
// package-level global (mirrors the teacher's PublishLogger/SessionStatsLogger
// pattern of passing a *slog.Logger into the components that need one).

package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Options configures New.
type Options struct {
	Level    slog.Level
	Writer   io.Writer // defaults to os.Stderr
	NoColor  bool
	AddTime  bool
	TimeFmt  string // defaults to "15:04:05"
}

// New builds a colorized, human-readable logger for interactive use
// (muxclient, muxd running in a foreground terminal). Use NewJSON for
// machine-consumed server logs.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	timeFmt := opts.TimeFmt
	if timeFmt == "" {
		timeFmt = "15:04:05"
	}
	h := tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: timeFmt,
		NoColor:    opts.NoColor || !isTerminal(w),
	})
	return slog.New(h)
}

// NewJSON builds a slog.Logger emitting structured JSON, suitable for
// non-interactive server deployments and log aggregation.
func NewJSON(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
