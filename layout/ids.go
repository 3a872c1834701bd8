// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/ids.go
// Summary: Monotonic, process-unique identifier minting for layout entities.

package layout

import "sync/atomic"

// WorkspaceID, PaneGroupID, TabID and SplitID are opaque identifiers minted
// by a shared monotonic counter. They are never reused within a process.
type (
	WorkspaceID uint64
	PaneGroupID uint64
	TabID       uint64
	SplitID     uint64
)

var idCounter uint64

// nextID returns a fresh, process-unique counter value. All layout entity
// identifiers share one counter so that no two entities of any kind ever
// collide, which simplifies debugging traces that interleave ids of
// different entity types.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

func NewWorkspaceID() WorkspaceID { return WorkspaceID(nextID()) }
func NewPaneGroupID() PaneGroupID { return PaneGroupID(nextID()) }
func NewTabID() TabID             { return TabID(nextID()) }
func NewSplitID() SplitID         { return SplitID(nextID()) }
