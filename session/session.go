// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/session.go
// Summary: Session Table (spec.md §4.E) and its per-session broadcaster task (§4.H).

package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/texelation/muxd/protocol"
	"github.com/texelation/muxd/ptyspawn"
)

// ErrNotFound is returned for operations addressed at a session id the
// table has no record of. Per spec.md §7 this is a not-found error: callers
// at the protocol endpoint silently ignore it rather than surfacing it.
var ErrNotFound = errors.New("session: not found")

// Subscriber is the protocol endpoint's half of a session's fan-out: one
// implementation per connected client. WriteBinary delivers session-
// addressed pty bytes; WriteControl delivers a JSON control message.
type Subscriber interface {
	WriteBinary(sessionID uint32, payload []byte) error
	WriteControl(v any) error
}

// Session is one pty-backed terminal and its subscriber fan-out set.
type Session struct {
	ID uint32

	mu          sync.Mutex
	spawner     *ptyspawn.Spawner
	scrollback  *Scrollback
	subscribers map[uint32]Subscriber
	cols, rows  int
	mode        protocol.SessionMode
	driver      *uint32
	closed      bool
}

// Recorder receives counts of pty/frame traffic for metrics export. A nil
// Recorder is a valid no-op.
type Recorder interface {
	RecordBytesFromPty(n int)
	RecordFrameSent()
	RecordFrameDropped()
}

// Table owns the set of live sessions and is the sole entry point the mux
// protocol endpoint (4.G) uses to operate on them.
type Table struct {
	mu            sync.Mutex
	sessions      map[uint32]*Session
	nextID        uint32
	scrollbackCap int
	workDir       string
	log           *slog.Logger
	rec           Recorder
}

// NewTable constructs an empty session table. scrollbackCap bounds each
// session's retained output in bytes; workDir is the pty's working
// directory.
func NewTable(scrollbackCap int, workDir string, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{
		sessions:      make(map[uint32]*Session),
		scrollbackCap: scrollbackCap,
		workDir:       workDir,
		log:           log,
	}
}

// SetRecorder attaches a metrics Recorder; every session spawned afterward
// reports its pty/frame traffic to it.
func (t *Table) SetRecorder(rec Recorder) {
	t.mu.Lock()
	t.rec = rec
	t.mu.Unlock()
}

// Create spawns a pty and registers it under a freshly allocated id.
func (t *Table) Create(cols, rows int) (uint32, error) {
	spawner, err := ptyspawn.Spawn(ptyspawn.Config{Dir: t.workDir, Cols: cols, Rows: rows})
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	sess := &Session{
		ID:          id,
		spawner:     spawner,
		scrollback:  NewScrollback(t.scrollbackCap),
		subscribers: make(map[uint32]Subscriber),
		cols:        cols,
		rows:        rows,
		mode:        protocol.ModeShared,
	}
	t.sessions[id] = sess
	rec := t.rec
	t.mu.Unlock()

	go sess.broadcastLoop(t.log, rec)
	return id, nil
}

// Destroy terminates a session's pty, drops its scrollback, and notifies
// subscribers that it is gone.
func (t *Table) Destroy(id uint32) error {
	t.mu.Lock()
	sess := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if sess == nil {
		return ErrNotFound
	}
	return sess.close()
}

// Resize forwards a new size to the pty and notifies every subscriber other
// than initiatorClient with session_resized.
func (t *Table) Resize(id uint32, cols, rows int, initiatorClient uint32) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}
	if cols <= 0 || rows <= 0 || cols > 10000 || rows > 10000 {
		return nil // precondition-failed: out-of-range, silently dropped
	}
	if err := sess.spawner.Resize(cols, rows); err != nil {
		return err
	}

	sess.mu.Lock()
	sess.cols, sess.rows = cols, rows
	subs := sess.snapshotSubscribersLocked()
	sess.mu.Unlock()

	for clientID, sub := range subs {
		if clientID == initiatorClient {
			continue
		}
		_ = sub.WriteControl(protocol.SessionResized{
			Type: protocol.TypeSessionResized, SessionID: id, Cols: cols, Rows: rows,
		})
	}
	return nil
}

// Attach adds sub as a subscriber of id, replies session_attached, and
// immediately follows it with a binary burst of the session's current
// scrollback; when the scrollback is empty no burst is sent. The whole sequence runs under the session lock so the
// broadcaster task cannot interleave live output ahead of it (spec.md §5
// ordering guarantee 2).
func (t *Table) Attach(sub Subscriber, clientID, id uint32, cols, rows int) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.subscribers[clientID] = sub
	snapshot := sess.scrollback.Snapshot()

	if err := sub.WriteControl(protocol.SessionAttached{Type: protocol.TypeSessionAttached, SessionID: id}); err != nil {
		return err
	}
	if len(snapshot) == 0 {
		return nil
	}
	return sub.WriteBinary(id, snapshot)
}

// Detach removes clientID from id's subscribers. If clientID held the
// driver role, the driver becomes none. No driver_changed broadcast is sent,
// and a later ReleaseDriver for clientID is a no-op because the slot is
// already clear; DisconnectClient is the call that releases and broadcasts.
func (t *Table) Detach(clientID, id uint32) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}
	sess.mu.Lock()
	delete(sess.subscribers, clientID)
	if sess.driver != nil && *sess.driver == clientID {
		sess.driver = nil
	}
	sess.mu.Unlock()
	return nil
}

// SetMode switches a session between shared and single_driver access.
// Setting single_driver while no driver is held elects clientID as driver.
// Any other mode value is ignored.
func (t *Table) SetMode(clientID, id uint32, mode protocol.SessionMode) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}
	if mode != protocol.ModeShared && mode != protocol.ModeSingleDriver {
		return nil
	}
	sess.mu.Lock()
	sess.mode = mode
	if mode == protocol.ModeSingleDriver && sess.driver == nil {
		d := clientID
		sess.driver = &d
	}
	sess.mu.Unlock()
	return nil
}

// RequestDriver grants the driver role to clientID, succeeding only if no
// one currently holds it or clientID already does. When granted it
// broadcasts driver_changed to current subscribers; a refused request
// broadcasts nothing and returns false.
func (t *Table) RequestDriver(clientID, id uint32) (granted bool, err error) {
	sess := t.get(id)
	if sess == nil {
		return false, ErrNotFound
	}
	sess.mu.Lock()
	if sess.driver == nil || *sess.driver == clientID {
		d := clientID
		sess.driver = &d
		granted = true
	}
	mode, driver, subs := sess.mode, sess.driver, sess.snapshotSubscribersLocked()
	sess.mu.Unlock()

	if granted {
		broadcastDriverChanged(subs, id, driver, mode)
	}
	return granted, nil
}

// ReleaseDriver clears the driver role if clientID currently holds it. It
// is a no-op otherwise.
func (t *Table) ReleaseDriver(clientID, id uint32) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}
	sess.mu.Lock()
	if sess.driver == nil || *sess.driver != clientID {
		sess.mu.Unlock()
		return nil
	}
	sess.driver = nil
	mode, subs := sess.mode, sess.snapshotSubscribersLocked()
	sess.mu.Unlock()

	broadcastDriverChanged(subs, id, nil, mode)
	return nil
}

// Input admits or drops keystroke bytes from clientID according to the
// session's driver mode, then forwards admitted bytes to the pty.
func (t *Table) Input(clientID, id uint32, payload []byte) error {
	sess := t.get(id)
	if sess == nil {
		return ErrNotFound
	}
	sess.mu.Lock()
	admitted := sess.mode != protocol.ModeSingleDriver || sess.driver == nil || *sess.driver == clientID
	sess.mu.Unlock()
	if !admitted {
		return nil
	}
	_, err := sess.spawner.Write(payload)
	return err
}

// DisconnectClient removes clientID from every session's subscriber set and
// releases any driver role it held, broadcasting driver_changed for each
// session whose driver it was. Used on transport drop (spec.md §5
// cancellation).
func (t *Table) DisconnectClient(clientID uint32) {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		_, wasSubscriber := sess.subscribers[clientID]
		delete(sess.subscribers, clientID)
		wasDriver := sess.driver != nil && *sess.driver == clientID
		if wasDriver {
			sess.driver = nil
		}
		mode, driver, subs := sess.mode, sess.driver, sess.snapshotSubscribersLocked()
		sess.mu.Unlock()

		if wasDriver {
			broadcastDriverChanged(subs, sess.ID, driver, mode)
		}
		_ = wasSubscriber
	}
}

func (t *Table) get(id uint32) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[id]
}

func (s *Session) snapshotSubscribersLocked() map[uint32]Subscriber {
	out := make(map[uint32]Subscriber, len(s.subscribers))
	for k, v := range s.subscribers {
		out[k] = v
	}
	return out
}

func (s *Session) close() error {
	s.mu.Lock()
	s.closed = true
	subs := s.snapshotSubscribersLocked()
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.WriteControl(struct {
			Type      protocol.Type `json:"type"`
			SessionID uint32        `json:"sessionId"`
		}{protocol.TypeDestroySession, s.ID})
	}
	return s.spawner.Close()
}

// broadcastLoop is the single writer task of spec.md §4.H: it reads pty
// output, appends to scrollback under lock, and forwards each chunk to
// every current subscriber as one binary frame.
func (s *Session) broadcastLoop(log *slog.Logger, rec Recorder) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.spawner.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if rec != nil {
				rec.RecordBytesFromPty(n)
			}

			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.scrollback.Append(chunk)
			subs := s.snapshotSubscribersLocked()
			s.mu.Unlock()

			for _, sub := range subs {
				if werr := sub.WriteBinary(s.ID, chunk); werr != nil {
					log.Debug("subscriber unreadable, dropping frame", "session", s.ID, "error", werr)
					if rec != nil {
						rec.RecordFrameDropped()
					}
				} else if rec != nil {
					rec.RecordFrameSent()
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("pty read ended", "session", s.ID, "error", err)
			}
			return
		}
	}
}

func broadcastDriverChanged(subs map[uint32]Subscriber, sessionID uint32, driver *uint32, mode protocol.SessionMode) {
	msg := protocol.DriverChanged{Type: protocol.TypeDriverChanged, SessionID: sessionID, DriverID: driver, Mode: mode}
	for _, sub := range subs {
		_ = sub.WriteControl(msg)
	}
}
