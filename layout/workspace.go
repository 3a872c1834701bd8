// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/workspace.go
// Summary: Workspace, PaneGroup, Tab and AppState data types.

package layout

// TabKind distinguishes a terminal tab from a placeholder tab (the
// in-browser fake-shell fallback used only in tests; see spec.md §1).
type TabKind int

const (
	TabTerminal TabKind = iota
	TabPlaceholder
)

// Tab is a single entry in a PaneGroup's tab strip.
type Tab struct {
	ID    TabID
	Title string
	Kind  TabKind
}

// PaneGroup is a leaf's payload: an ordered, non-empty sequence of tabs plus
// the id of the currently active one.
type PaneGroup struct {
	ID          PaneGroupID
	Tabs        []Tab
	ActiveTabID TabID
}

func (g PaneGroup) activeIndex() int {
	for i, t := range g.Tabs {
		if t.ID == g.ActiveTabID {
			return i
		}
	}
	return -1
}

func (g PaneGroup) indexOfTab(id TabID) int {
	for i, t := range g.Tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Workspace owns one split tree, the pane groups reachable from its leaves,
// and a pointer to the currently focused leaf. Title shadows the focused
// group's active tab's title.
type Workspace struct {
	ID             WorkspaceID
	Title          string
	Root           *Node
	Groups         map[PaneGroupID]PaneGroup
	FocusedGroupID PaneGroupID
}

func (w Workspace) focusedGroup() (PaneGroup, bool) {
	g, ok := w.Groups[w.FocusedGroupID]
	return g, ok
}

// cloneGroups returns a shallow copy of the Groups map so mutations never
// leak into the previous AppState value (structural sharing applies to the
// tree and to untouched PaneGroup values, not to the map header itself).
func cloneGroups(groups map[PaneGroupID]PaneGroup) map[PaneGroupID]PaneGroup {
	out := make(map[PaneGroupID]PaneGroup, len(groups))
	for k, v := range groups {
		out[k] = v
	}
	return out
}

// AppState is the full, immutable layout state: a collection of workspaces
// plus sidebar order and the active workspace.
type AppState struct {
	Workspaces      map[WorkspaceID]Workspace
	WorkspaceOrder  []WorkspaceID
	ActiveWorkspace WorkspaceID
}

func cloneWorkspaces(workspaces map[WorkspaceID]Workspace) map[WorkspaceID]Workspace {
	out := make(map[WorkspaceID]Workspace, len(workspaces))
	for k, v := range workspaces {
		out[k] = v
	}
	return out
}

// NewInitialState builds the one-workspace, one-leaf, one-terminal-tab
// initial state described in spec.md §8 scenario 1.
func NewInitialState() AppState {
	wsID := NewWorkspaceID()
	groupID := NewPaneGroupID()
	tabID := NewTabID()

	group := PaneGroup{
		ID:          groupID,
		Tabs:        []Tab{{ID: tabID, Title: "Terminal 1", Kind: TabTerminal}},
		ActiveTabID: tabID,
	}
	ws := Workspace{
		ID:             wsID,
		Title:          group.Tabs[0].Title,
		Root:           NewLeaf(groupID),
		Groups:         map[PaneGroupID]PaneGroup{groupID: group},
		FocusedGroupID: groupID,
	}
	return AppState{
		Workspaces:      map[WorkspaceID]Workspace{wsID: ws},
		WorkspaceOrder:  []WorkspaceID{wsID},
		ActiveWorkspace: wsID,
	}
}

func (s AppState) activeWorkspace() (Workspace, bool) {
	ws, ok := s.Workspaces[s.ActiveWorkspace]
	return ws, ok
}

func indexOfWorkspace(order []WorkspaceID, id WorkspaceID) int {
	for i, w := range order {
		if w == id {
			return i
		}
	}
	return -1
}

func removeWorkspaceID(order []WorkspaceID, id WorkspaceID) []WorkspaceID {
	out := make([]WorkspaceID, 0, len(order))
	for _, w := range order {
		if w != id {
			out = append(out, w)
		}
	}
	return out
}
