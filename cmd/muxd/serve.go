// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/muxd/serve.go
// Summary: `muxd serve` — starts the session router and mux protocol endpoint.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/texelation/muxd/client"
	"github.com/texelation/muxd/config"
	"github.com/texelation/muxd/internal/logging"
	"github.com/texelation/muxd/internal/metrics"
	"github.com/texelation/muxd/layout"
	"github.com/texelation/muxd/muxserver"
	"github.com/texelation/muxd/session"
)

var (
	flagAddr      string
	flagConfigDir string
	flagVerbose   bool
	flagJSONLogs  bool
	flagNoMetrics bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the muxd session router",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":7681", "listen address")
	serveCmd.Flags().StringVar(&flagConfigDir, "config-dir", "", "config directory (default: ~/.config/muxd)")
	serveCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	serveCmd.Flags().BoolVar(&flagJSONLogs, "json-logs", false, "emit structured JSON logs instead of colorized text")
	serveCmd.Flags().BoolVar(&flagNoMetrics, "no-metrics", false, "disable the /metrics endpoint")
}

func runServe(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	var log *slog.Logger
	if flagJSONLogs {
		log = logging.NewJSON(level, os.Stderr)
	} else {
		log = logging.New(logging.Options{Level: level})
	}
	slog.SetDefault(log)

	configDir := flagConfigDir
	if configDir == "" {
		dir, err := config.DefaultConfigDir()
		if err != nil {
			log.Warn("could not resolve default config dir", "error", err)
		} else {
			configDir = dir
		}
	}
	cfgMgr, err := config.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfgMgr.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg := cfgMgr.Current()
	if flagAddr != ":7681" {
		cfg.ListenAddr = flagAddr
	}

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	sessions := session.NewTable(cfg.ScrollbackBytes, cfg.WorkDir, log)
	sessions.SetRecorder(metricsReg)
	clients := client.NewRegistry()
	workspace := &staticWorkspace{state: layout.NewInitialState()}

	srv := muxserver.New(cfg.ListenAddr, sessions, clients, workspace)
	srv.Config = cfgMgr
	srv.Metrics = metricsReg
	srv.Log = log
	if !flagNoMetrics {
		srv.EnableMetricsEndpoint(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	cfgMgr.OnChange(func(c config.Config) {
		log.Info("config reloaded", "theme", c.Terminal.Theme)
		srv.PublishTerminalConfig(c)
	})
	cfgMgr.Watch()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("muxd listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// staticWorkspace implements muxserver.WorkspaceSource. The layout package's
// reducer is driven by the view side (spec.md §5); this server only ever
// needs to hand newly connecting clients a starting snapshot.
type staticWorkspace struct{ state layout.AppState }

func (w *staticWorkspace) Current() layout.AppState { return w.state }
