// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/dropzone.go
// Summary: Drop-target resolution for drag-driven tab restructuring (spec.md §4.D).

package layout

import "math"

// Point is a viewport-space coordinate pair.
type Point struct {
	X, Y float64
}

// DOMRect is an axis-aligned rectangle in viewport pixels.
type DOMRect struct {
	X, Y, W, H float64
}

func (r DOMRect) contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// TabBarLayout is the laid-out rectangle of one pane group's tab strip plus
// the rectangles of the tabs it contains, in left-to-right order.
type TabBarLayout struct {
	Group PaneGroupID
	Rect  DOMRect
	Tabs  []DOMRect
}

// PaneSurfaceLayout is the laid-out rectangle of one pane group's content
// surface (used for the directional drop zones).
type PaneSurfaceLayout struct {
	Group PaneGroupID
	Rect  DOMRect
}

// DropTargetKind distinguishes the two shapes of resolved drop target.
type DropTargetKind int

const (
	DropNone DropTargetKind = iota
	DropTabBar
	DropPane
)

// DropTarget is the resolved landing spot for a drag gesture.
type DropTarget struct {
	Kind      DropTargetKind
	Group     PaneGroupID
	Index     int           // valid when Kind == DropTabBar
	Direction DropDirection // valid when Kind == DropPane
}

// dragThresholdPx is the Manhattan distance below which a drag gesture has
// not yet begun; the gesture is a tab-select click instead.
const dragThresholdPx = 5.0

// ExceedsDragThreshold reports whether the cursor has moved far enough from
// the press point (Manhattan distance) to count as a drag rather than a
// click.
func ExceedsDragThreshold(press, current Point) bool {
	dx := math.Abs(current.X - press.X)
	dy := math.Abs(current.Y - press.Y)
	return dx+dy >= dragThresholdPx
}

// ResolveDropTarget decides whether cursor lands in a tab strip (with an
// insertion index) or a pane's directional drop zone. Tab bars take
// precedence over pane zones.
func ResolveDropTarget(cursor Point, tabBars []TabBarLayout, panes []PaneSurfaceLayout) DropTarget {
	for _, bar := range tabBars {
		if !bar.Rect.contains(cursor) {
			continue
		}
		index := 0
		for _, tab := range bar.Tabs {
			midX := tab.X + tab.W/2
			if midX <= cursor.X {
				index++
			}
		}
		if index > len(bar.Tabs) {
			index = len(bar.Tabs)
		}
		if index < 0 {
			index = 0
		}
		return DropTarget{Kind: DropTabBar, Group: bar.Group, Index: index}
	}

	for _, pane := range panes {
		if !pane.Rect.contains(cursor) {
			continue
		}
		if pane.Rect.W <= 0 || pane.Rect.H <= 0 {
			continue
		}
		relX := (cursor.X - pane.Rect.X) / pane.Rect.W
		relY := (cursor.Y - pane.Rect.Y) / pane.Rect.H
		switch {
		case relX < 0.3:
			return DropTarget{Kind: DropPane, Group: pane.Group, Direction: DirLeft}
		case relX > 0.7:
			return DropTarget{Kind: DropPane, Group: pane.Group, Direction: DirRight}
		case relY < 0.3:
			return DropTarget{Kind: DropPane, Group: pane.Group, Direction: DirUp}
		case relY > 0.7:
			return DropTarget{Kind: DropPane, Group: pane.Group, Direction: DirDown}
		default:
			return DropTarget{Kind: DropNone}
		}
	}

	return DropTarget{Kind: DropNone}
}
