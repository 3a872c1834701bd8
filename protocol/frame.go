// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/frame.go
// Summary: Binary session-addressed frame codec for the mux duplex channel (spec.md §4.G).

package protocol

import (
	"encoding/binary"
	"errors"
)

// ErrFrameTooShort is returned by DecodeBinaryFrame when a binary websocket
// frame is shorter than the 4-byte session id header. Per spec.md §7 this is
// a protocol-violation: the frame is discarded, the connection stays open.
var ErrFrameTooShort = errors.New("protocol: binary frame shorter than 4 bytes")

// sessionIDLen is the width of the little-endian session id header that
// prefixes every binary frame.
const sessionIDLen = 4

// EncodeBinaryFrame prefixes payload with sid encoded as a 4-byte
// little-endian session id, producing the wire form of one binary frame.
func EncodeBinaryFrame(sid uint32, payload []byte) []byte {
	out := make([]byte, sessionIDLen+len(payload))
	binary.LittleEndian.PutUint32(out[:sessionIDLen], sid)
	copy(out[sessionIDLen:], payload)
	return out
}

// DecodeBinaryFrame splits a raw binary websocket frame into its session id
// and payload. The returned payload aliases frame; callers that retain it
// past the lifetime of frame's underlying buffer must copy it.
func DecodeBinaryFrame(frame []byte) (sid uint32, payload []byte, err error) {
	if len(frame) < sessionIDLen {
		return 0, nil, ErrFrameTooShort
	}
	sid = binary.LittleEndian.Uint32(frame[:sessionIDLen])
	return sid, frame[sessionIDLen:], nil
}
