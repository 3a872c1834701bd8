// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: muxserver/connection.go
// Summary: Per-client duplex frame loop: reads JSON control and binary
// session frames, dispatches through the session table (spec.md §4.E),
// writes replies and broadcasts back out the same socket.

package muxserver

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/texelation/muxd/protocol"
)

// clientConn is one connected client's half of the mux protocol endpoint.
// It implements session.Subscriber so the session table can address it
// directly from the broadcaster task (spec.md §4.H) as well as from this
// goroutine's own request handling.
type clientConn struct {
	conn          net.Conn
	clientID      uint32
	server        *Server
	legacy        bool
	legacySession uint32

	writeMu sync.Mutex
}

// WriteBinary implements session.Subscriber.
func (c *clientConn) WriteBinary(sessionID uint32, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if c.legacy {
		return wsutil.WriteServerBinary(c.conn, payload)
	}
	return wsutil.WriteServerBinary(c.conn, protocol.EncodeBinaryFrame(sessionID, payload))
}

// WriteControl implements session.Subscriber.
func (c *clientConn) WriteControl(v any) error {
	data, err := protocol.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return wsutil.WriteServerText(c.conn, data)
}

func (c *clientConn) serve(cols, rows int) {
	defer c.conn.Close()
	defer c.teardown()

	if c.legacy {
		c.serveLegacy(cols, rows)
		return
	}
	c.serveMux(cols, rows)
}

// serveMux implements the multiplexed protocol of spec.md §4.G: the
// handshake sends workspace_snapshot, then every subsequent frame is either
// a JSON control message or a session-addressed binary payload.
func (c *clientConn) serveMux(cols, rows int) {
	snapshot, err := json.Marshal(c.server.Workspace.Current())
	if err != nil {
		return
	}
	if err := c.WriteControl(protocol.WorkspaceSnapshot{
		Type:           protocol.TypeWorkspaceSnapshot,
		ClientID:       c.clientID,
		Workspace:      snapshot,
		TerminalConfig: c.terminalConfig(),
	}); err != nil {
		return
	}
	c.server.Clients.MarkReady(c.clientID)
	c.announceJoin()

	for {
		data, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			if isClosedOrEOF(err) {
				return
			}
			return
		}
		switch op {
		case ws.OpText:
			c.handleControl(data)
		case ws.OpBinary:
			c.handleBinary(data)
		case ws.OpClose:
			return
		}
	}
}

// serveLegacy implements the single-session subset of spec.md §6: one
// connection per session, raw duplex pty bytes, and a single control frame
// shape for resize.
func (c *clientConn) serveLegacy(cols, rows int) {
	id, err := c.server.Sessions.Create(cols, rows)
	if err != nil {
		return
	}
	c.legacySession = id
	if c.server.Metrics != nil {
		c.server.Metrics.SessionsCreated.Inc()
		c.server.Metrics.SessionsActive.Inc()
	}
	if err := c.server.Sessions.Attach(c, c.clientID, id, cols, rows); err != nil {
		return
	}

	for {
		data, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return
		}
		switch op {
		case ws.OpText:
			env, err := protocol.PeekEnvelope(data)
			if err != nil || env.Type != protocol.TypeResize {
				continue // protocol-violation: malformed or unknown, discard frame
			}
			resize, err := protocol.DecodeLegacyResize(data)
			if err != nil {
				continue
			}
			_ = c.server.Sessions.Resize(id, resize.Cols, resize.Rows, c.clientID)
		case ws.OpBinary:
			_ = c.server.Sessions.Input(c.clientID, id, data)
		case ws.OpClose:
			return
		}
	}
}

func (c *clientConn) handleControl(data []byte) {
	env, err := protocol.PeekEnvelope(data)
	if err != nil {
		return // protocol-violation: malformed JSON, discard frame
	}
	switch env.Type {
	case protocol.TypeCreateSession:
		msg, err := protocol.DecodeCreateSession(data)
		if err != nil {
			return
		}
		id, err := c.server.Sessions.Create(msg.Cols, msg.Rows)
		if err != nil {
			return // resource-exhaustion: pending slot silently consumed
		}
		if c.server.Metrics != nil {
			c.server.Metrics.SessionsCreated.Inc()
			c.server.Metrics.SessionsActive.Inc()
		}
		_ = c.WriteControl(protocol.SessionCreated{Type: protocol.TypeSessionCreated, SessionID: id})

	case protocol.TypeDestroySession:
		msg, err := protocol.DecodeDestroySession(data)
		if err != nil {
			return
		}
		if err := c.server.Sessions.Destroy(msg.SessionID); err == nil && c.server.Metrics != nil {
			c.server.Metrics.SessionsDestroyed.Inc()
			c.server.Metrics.SessionsActive.Dec()
		}

	case protocol.TypeResize:
		msg, err := protocol.DecodeResize(data)
		if err != nil {
			return
		}
		_ = c.server.Sessions.Resize(msg.SessionID, msg.Cols, msg.Rows, c.clientID)

	case protocol.TypeAttachSession:
		msg, err := protocol.DecodeAttachSession(data)
		if err != nil {
			return
		}
		if err := c.server.Sessions.Attach(c, c.clientID, msg.SessionID, msg.Cols, msg.Rows); err == nil {
			c.server.Clients.MarkAttached(c.clientID, msg.SessionID)
		}

	case protocol.TypeDetachSession:
		msg, err := protocol.DecodeDetachSession(data)
		if err != nil {
			return
		}
		_ = c.server.Sessions.Detach(c.clientID, msg.SessionID)
		c.server.Clients.MarkDetached(c.clientID, msg.SessionID)

	case protocol.TypeSetSessionMode:
		msg, err := protocol.DecodeSetSessionMode(data)
		if err != nil {
			return
		}
		_ = c.server.Sessions.SetMode(c.clientID, msg.SessionID, msg.Mode)

	case protocol.TypeRequestDriver:
		msg, err := protocol.DecodeRequestDriver(data)
		if err != nil {
			return
		}
		if granted, _ := c.server.Sessions.RequestDriver(c.clientID, msg.SessionID); granted {
			c.server.Clients.MarkDriver(c.clientID, msg.SessionID)
		}

	case protocol.TypeReleaseDriver:
		msg, err := protocol.DecodeReleaseDriver(data)
		if err != nil {
			return
		}
		_ = c.server.Sessions.ReleaseDriver(c.clientID, msg.SessionID)
		c.server.Clients.ClearDriver(c.clientID, msg.SessionID)

	default:
		// unknown type: protocol-violation, discard frame
	}
}

func (c *clientConn) handleBinary(data []byte) {
	sid, payload, err := protocol.DecodeBinaryFrame(data)
	if err != nil {
		return // protocol-violation: frame shorter than 4 bytes, discard
	}
	_ = c.server.Sessions.Input(c.clientID, sid, payload)
}

// announceJoin broadcasts client_joined to every other already-ready
// client, satisfying spec.md §5 ordering guarantee 4.
func (c *clientConn) announceJoin() {
	c.server.broadcastToReady(c.clientID, protocol.ClientJoined{Type: protocol.TypeClientJoined, ClientID: c.clientID})
}

func (c *clientConn) terminalConfig() *protocol.TerminalConfig {
	if c.server.Config == nil {
		return nil
	}
	return c.server.Config.Current().Terminal.ToProtocol()
}

func (c *clientConn) teardown() {
	if c.legacy {
		// legacy mode is one connection per session: nobody else can be
		// attached, so losing the connection destroys the session.
		if err := c.server.Sessions.Destroy(c.legacySession); err == nil && c.server.Metrics != nil {
			c.server.Metrics.SessionsDestroyed.Inc()
			c.server.Metrics.SessionsActive.Dec()
		}
		c.server.Clients.Unregister(c.clientID)
		return
	}

	wasReady := c.server.Clients.IsReady(c.clientID)
	attached, _ := c.server.Clients.Unregister(c.clientID)
	// DisconnectClient runs before the Detach calls: Detach clears a held
	// driver slot silently, which would leave DisconnectClient nothing to
	// broadcast driver_changed for.
	c.server.Sessions.DisconnectClient(c.clientID)
	for _, sid := range attached {
		_ = c.server.Sessions.Detach(c.clientID, sid)
	}
	if wasReady {
		c.server.broadcastToReady(c.clientID, protocol.ClientLeft{Type: protocol.TypeClientLeft, ClientID: c.clientID})
	}
}

func isClosedOrEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
