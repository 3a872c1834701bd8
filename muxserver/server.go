// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: muxserver/server.go
// Summary: Mux Protocol Endpoint (spec.md §4.G): websocket listener that
// multiplexes session-addressed binary payloads and JSON control messages
// over one duplex channel per client.

package muxserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/ws"

	"github.com/texelation/muxd/client"
	"github.com/texelation/muxd/config"
	"github.com/texelation/muxd/internal/metrics"
	"github.com/texelation/muxd/layout"
	"github.com/texelation/muxd/protocol"
	"github.com/texelation/muxd/session"
)

// WorkspaceSource supplies the layout state advertised in workspace_snapshot
// and workspace_update. This server runs no reducer loop of its own; Current
// is the only thing the protocol endpoint needs from the layout state.
type WorkspaceSource interface {
	Current() layout.AppState
}

// Server accepts websocket connections at /ws and serves both the
// multiplexed (?mode=mux) and legacy per-session (default) protocols.
type Server struct {
	Sessions  *session.Table
	Clients   *client.Registry
	Workspace WorkspaceSource
	Config    *config.Manager
	Metrics   *metrics.Registry
	Log       *slog.Logger

	httpSrv *http.Server
	mux     *http.ServeMux
	wg      sync.WaitGroup
	quit    chan struct{}

	connsMu sync.Mutex
	conns   map[uint32]*clientConn
}

// New constructs a Server. Sessions, Clients, and Workspace are required.
// Config and Metrics may be left nil (no terminalConfig is sent and nothing
// is recorded); Log starts as slog.Default() and may be replaced, but not
// with nil.
func New(addr string, sessions *session.Table, clients *client.Registry, workspace WorkspaceSource) *Server {
	s := &Server{
		Sessions:  sessions,
		Clients:   clients,
		Workspace: workspace,
		Log:       slog.Default(),
		quit:      make(chan struct{}),
		conns:     make(map[uint32]*clientConn),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux = mux
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// EnableMetricsEndpoint mounts handler (a promhttp.Handler()) at /metrics.
// Call it before ListenAndServe.
func (s *Server) EnableMetricsEndpoint(handler http.Handler) {
	s.mux.Handle("/metrics", handler)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe starts the HTTP/websocket listener and blocks until it
// stops (on Shutdown or a transport-level failure).
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener and waits for in-flight
// connections to finish their current frame.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.quit)
	err := s.httpSrv.Shutdown(ctx)
	// http.Server does not track hijacked websocket connections; close them
	// so each connection's read loop returns after its current frame.
	s.connsMu.Lock()
	for _, cx := range s.conns {
		_ = cx.conn.Close()
	}
	s.connsMu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	cols, _ := strconv.Atoi(r.URL.Query().Get("cols"))
	rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.Log.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := s.Clients.Register()
	if s.Metrics != nil {
		s.Metrics.ClientsConnected.Inc()
	}

	cx := &clientConn{
		conn:     conn,
		clientID: c.ID,
		server:   s,
		legacy:   mode != "mux",
	}
	s.registerConn(cx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregisterConn(cx.clientID)
		defer func() {
			if s.Metrics != nil {
				s.Metrics.ClientsConnected.Dec()
			}
		}()
		cx.serve(cols, rows)
	}()
}

// PublishTerminalConfig broadcasts a workspace_update carrying cfg's
// terminal block to every ready client, driven by config.Manager's hot
// reload (spec.md §6 "configuration provided to clients").
func (s *Server) PublishTerminalConfig(cfg config.Config) {
	s.broadcastToReady(0, protocol.WorkspaceUpdate{
		Type:           protocol.TypeWorkspaceUpdate,
		TerminalConfig: cfg.Terminal.ToProtocol(),
	})
}

func (s *Server) registerConn(cx *clientConn) {
	s.connsMu.Lock()
	s.conns[cx.clientID] = cx
	s.connsMu.Unlock()
}

func (s *Server) unregisterConn(clientID uint32) {
	s.connsMu.Lock()
	delete(s.conns, clientID)
	s.connsMu.Unlock()
}

// broadcastToReady delivers v to every ready client other than exclude,
// via each client's own socket.
func (s *Server) broadcastToReady(exclude uint32, v any) {
	for _, peer := range s.Clients.ReadyClients(exclude) {
		s.connsMu.Lock()
		cx := s.conns[peer.ID]
		s.connsMu.Unlock()
		if cx != nil {
			_ = cx.WriteControl(v)
		}
	}
}

// writeDeadline bounds how long a single frame write may block before the
// client is considered unreadable (spec.md §4.H: "except when the
// subscriber is known unreadable").
const writeDeadline = 5 * time.Second
