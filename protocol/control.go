// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/control.go
// Summary: JSON control messages exchanged over the mux duplex channel (spec.md §4.G).

package protocol

import (
	"encoding/json"
	"errors"
)

// ErrUnknownType is returned when an incoming control message's "type" field
// does not match any message known to this protocol version. Per spec.md §7
// this is a protocol-violation: the frame is discarded, not the connection.
var ErrUnknownType = errors.New("protocol: unknown control message type")

// Type enumerates the control message kinds carried over the JSON side of
// the duplex channel.
type Type string

const (
	TypeWorkspaceSnapshot Type = "workspace_snapshot"
	TypeWorkspaceUpdate   Type = "workspace_update"
	TypeClientJoined      Type = "client_joined"
	TypeClientLeft        Type = "client_left"
	TypeCreateSession     Type = "create_session"
	TypeSessionCreated    Type = "session_created"
	TypeDestroySession    Type = "destroy_session"
	TypeResize            Type = "resize"
	TypeSessionResized    Type = "session_resized"
	TypeAttachSession     Type = "attach_session"
	TypeSessionAttached   Type = "session_attached"
	TypeDetachSession     Type = "detach_session"
	TypeSetSessionMode    Type = "set_session_mode"
	TypeDriverChanged     Type = "driver_changed"
	TypeRequestDriver     Type = "request_driver"
	TypeReleaseDriver     Type = "release_driver"
)

// SessionMode mirrors the two modes accepted by SetSessionMode's "mode"
// field and emitted in DriverChanged.
type SessionMode string

const (
	ModeShared       SessionMode = "shared"
	ModeSingleDriver SessionMode = "single_driver"
)

// TerminalConfig carries client-facing terminal presentation preferences.
// All fields are optional; zero values mean "let the client default".
type TerminalConfig struct {
	Font           string `json:"font,omitempty"`
	Cursor         string `json:"cursor,omitempty"`
	ScrollbackSize int    `json:"scrollback,omitempty"`
	Theme          string `json:"theme,omitempty"`
	Renderer       string `json:"renderer,omitempty"` // "ghostty" or "xterm"
}

// Envelope is the common header of every JSON control message, enough to
// route a raw payload to its concrete decoder before fully unmarshaling it.
type Envelope struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId,omitempty"`
}

// WorkspaceSnapshot is the handshake message: until a client receives this,
// it is not "ready" (spec.md §4.G, §5 ordering guarantee 4).
type WorkspaceSnapshot struct {
	Type           Type            `json:"type"`
	ClientID       uint32          `json:"clientId"`
	Workspace      json.RawMessage `json:"workspace,omitempty"`
	TerminalConfig *TerminalConfig `json:"terminalConfig,omitempty"`
}

// WorkspaceUpdate carries later config deltas to one or all clients.
type WorkspaceUpdate struct {
	Type           Type            `json:"type"`
	ClientID       *uint32         `json:"clientId,omitempty"`
	TerminalConfig *TerminalConfig `json:"terminalConfig,omitempty"`
}

// ClientJoined announces peer presence to already-ready clients.
type ClientJoined struct {
	Type     Type   `json:"type"`
	ClientID uint32 `json:"clientId"`
}

// ClientLeft announces a peer's departure.
type ClientLeft struct {
	Type     Type   `json:"type"`
	ClientID uint32 `json:"clientId"`
}

// CreateSession requests a new pty of the given size.
type CreateSession struct {
	Type Type `json:"type"`
	Cols int  `json:"cols"`
	Rows int  `json:"rows"`
}

// SessionCreated answers a CreateSession; replies are correlated by FIFO
// reception order, not by an explicit request id (spec.md §4.G).
type SessionCreated struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// DestroySession terminates a pty.
type DestroySession struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// Resize forwards a new size to a session's pty.
type Resize struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

// SessionResized notifies subscribers other than the resize initiator.
type SessionResized struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

// AttachSession joins a session as a subscriber.
type AttachSession struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

// SessionAttached acknowledges AttachSession; it is followed by a binary
// burst carrying the session's scrollback whenever that scrollback is
// non-empty (spec.md §5 ordering guarantee 2).
type SessionAttached struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// DetachSession leaves a session's subscriber set.
type DetachSession struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// SetSessionMode switches a session between shared and single-driver access.
type SetSessionMode struct {
	Type      Type        `json:"type"`
	SessionID uint32      `json:"sessionId"`
	Mode      SessionMode `json:"mode"`
}

// DriverChanged announces a new driver identity (or none) to all subscribers.
type DriverChanged struct {
	Type      Type        `json:"type"`
	SessionID uint32      `json:"sessionId"`
	DriverID  *uint32     `json:"driverId,omitempty"`
	Mode      SessionMode `json:"mode"`
}

// RequestDriver asks to become a session's driver.
type RequestDriver struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// ReleaseDriver yields the driver role.
type ReleaseDriver struct {
	Type      Type   `json:"type"`
	SessionID uint32 `json:"sessionId"`
}

// LegacyResize is the sole control frame shape of the legacy per-session
// mode (spec.md §6): no sessionId, since the connection carries exactly one
// session's raw duplex bytes.
type LegacyResize struct {
	Type Type `json:"type"`
	Cols int  `json:"cols"`
	Rows int  `json:"rows"`
}

// PeekEnvelope extracts just the routing header from a raw control message,
// without committing to any concrete payload shape. A well-formed message
// whose type is not one of the Type constants above yields ErrUnknownType.
func PeekEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	switch env.Type {
	case TypeWorkspaceSnapshot, TypeWorkspaceUpdate, TypeClientJoined, TypeClientLeft,
		TypeCreateSession, TypeSessionCreated, TypeDestroySession, TypeResize,
		TypeSessionResized, TypeAttachSession, TypeSessionAttached, TypeDetachSession,
		TypeSetSessionMode, TypeDriverChanged, TypeRequestDriver, TypeReleaseDriver:
		return env, nil
	}
	return env, ErrUnknownType
}

// DecodeCreateSession unmarshals a create_session payload.
func DecodeCreateSession(data []byte) (CreateSession, error) {
	var v CreateSession
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeDestroySession unmarshals a destroy_session payload.
func DecodeDestroySession(data []byte) (DestroySession, error) {
	var v DestroySession
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeResize unmarshals a resize payload. Callers on the mux endpoint must
// check whether SessionID is present to distinguish it from LegacyResize.
func DecodeResize(data []byte) (Resize, error) {
	var v Resize
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeAttachSession unmarshals an attach_session payload.
func DecodeAttachSession(data []byte) (AttachSession, error) {
	var v AttachSession
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeDetachSession unmarshals a detach_session payload.
func DecodeDetachSession(data []byte) (DetachSession, error) {
	var v DetachSession
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeSetSessionMode unmarshals a set_session_mode payload.
func DecodeSetSessionMode(data []byte) (SetSessionMode, error) {
	var v SetSessionMode
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeRequestDriver unmarshals a request_driver payload.
func DecodeRequestDriver(data []byte) (RequestDriver, error) {
	var v RequestDriver
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeReleaseDriver unmarshals a release_driver payload.
func DecodeReleaseDriver(data []byte) (ReleaseDriver, error) {
	var v ReleaseDriver
	err := json.Unmarshal(data, &v)
	return v, err
}

// DecodeLegacyResize unmarshals a legacy-mode resize payload.
func DecodeLegacyResize(data []byte) (LegacyResize, error) {
	var v LegacyResize
	err := json.Unmarshal(data, &v)
	return v, err
}

// Marshal is a thin wrapper so callers never reach past this package for
// encoding; every exported message type above self-documents its own "type"
// field, so callers must set it before calling Marshal.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
