// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/reducer.go
// Summary: The single-writer pure reducer over AppState (spec.md §4.C).

package layout

// Reduce is the only writer of AppState. It is pure and total: unknown or
// inapplicable actions return s unchanged (the not-found / precondition-
// failed error kinds of spec.md §7 are no-ops here, never panics).
func Reduce(s AppState, a Action) AppState {
	switch a.Type {
	case AddWorkspace:
		return reduceAddWorkspace(s, a)
	case CloseWorkspace:
		return reduceCloseWorkspace(s, a)
	case SelectWorkspace:
		return reduceSelectWorkspace(s, a)
	case NextWorkspace:
		return reduceShiftWorkspace(s, 1)
	case PrevWorkspace:
		return reduceShiftWorkspace(s, -1)
	case UpdateWorkspaceTitle:
		return reduceUpdateWorkspaceTitle(s, a)
	case AddTab:
		return reduceAddTab(s, a)
	case CloseTab:
		return reduceCloseTab(s, a)
	case SelectTab:
		return reduceSelectTab(s, a)
	case NextTab:
		return reduceShiftTab(s, a.Group, 1)
	case PrevTab:
		return reduceShiftTab(s, a.Group, -1)
	case ReorderTab:
		return reduceReorderTab(s, a)
	case DragTabToGroup:
		return reduceDragTabToGroup(s, a)
	case DragTabToPane:
		return reduceDragTabToPane(s, a)
	case SplitPane:
		return reduceSplitPane(s, a)
	case ClosePane:
		return reduceClosePane(s, a)
	case ResizeSplit:
		return reduceResizeSplit(s, a)
	case FocusGroup:
		return reduceFocusGroup(s, a)
	case EqualizeSplits:
		return reduceEqualizeSplits(s)
	case FocusNextGroup:
		return reduceShiftFocus(s, 1)
	case FocusPrevGroup:
		return reduceShiftFocus(s, -1)
	case FocusDirection:
		return reduceFocusDirection(s, a)
	case UpdateTabTitle:
		return reduceUpdateTabTitle(s, a)
	default:
		return s
	}
}

// --- workspace-level actions ---

func reduceAddWorkspace(s AppState, a Action) AppState {
	wsID := a.Workspace
	if wsID == 0 {
		wsID = NewWorkspaceID()
	}
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
	workspaces := cloneWorkspaces(s.Workspaces)
	workspaces[wsID] = ws
	order := append(append([]WorkspaceID(nil), s.WorkspaceOrder...), wsID)
	return AppState{Workspaces: workspaces, WorkspaceOrder: order, ActiveWorkspace: wsID}
}

func reduceCloseWorkspace(s AppState, a Action) AppState {
	if len(s.WorkspaceOrder) < 2 {
		return s
	}
	if _, ok := s.Workspaces[a.Workspace]; !ok {
		return s
	}
	idx := indexOfWorkspace(s.WorkspaceOrder, a.Workspace)
	newOrder := removeWorkspaceID(s.WorkspaceOrder, a.Workspace)
	workspaces := cloneWorkspaces(s.Workspaces)
	delete(workspaces, a.Workspace)

	active := s.ActiveWorkspace
	if active == a.Workspace {
		successorIdx := idx
		if successorIdx >= len(newOrder) {
			successorIdx = len(newOrder) - 1
		}
		active = newOrder[successorIdx]
	}
	return AppState{Workspaces: workspaces, WorkspaceOrder: newOrder, ActiveWorkspace: active}
}

func reduceSelectWorkspace(s AppState, a Action) AppState {
	if _, ok := s.Workspaces[a.Workspace]; !ok {
		return s
	}
	s.ActiveWorkspace = a.Workspace
	return s
}

func reduceShiftWorkspace(s AppState, delta int) AppState {
	if len(s.WorkspaceOrder) == 0 {
		return s
	}
	idx := indexOfWorkspace(s.WorkspaceOrder, s.ActiveWorkspace)
	if idx == -1 {
		return s
	}
	n := len(s.WorkspaceOrder)
	newIdx := ((idx+delta)%n + n) % n
	s.ActiveWorkspace = s.WorkspaceOrder[newIdx]
	return s
}

func reduceUpdateWorkspaceTitle(s AppState, a Action) AppState {
	ws, ok := s.Workspaces[a.Workspace]
	if !ok {
		return s
	}
	ws.Title = a.Title
	workspaces := cloneWorkspaces(s.Workspaces)
	workspaces[a.Workspace] = ws
	s.Workspaces = workspaces
	return s
}

// --- tab-level actions ---

func reduceAddTab(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	group, ok := ws.Groups[a.Group]
	if !ok {
		return s
	}
	tabID := a.NewTabID
	if tabID == 0 {
		tabID = NewTabID()
	}
	newTab := Tab{ID: tabID, Title: defaultTerminalTitle(len(group.Tabs) + 1), Kind: TabTerminal}
	group.Tabs = append(append([]Tab(nil), group.Tabs...), newTab)
	group.ActiveTabID = tabID
	return commitGroup(s, ws.ID, group)
}

func defaultTerminalTitle(n int) string {
	return "Terminal " + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func reduceCloseTab(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	group, ok := ws.Groups[a.Group]
	if !ok {
		return s
	}
	idx := group.indexOfTab(a.Tab)
	if idx == -1 {
		return s
	}
	if len(group.Tabs) == 1 {
		return reduceClosePane(s, Action{Type: ClosePane, Group: a.Group})
	}

	wasActive := group.ActiveTabID == a.Tab
	newTabs := append(append([]Tab(nil), group.Tabs[:idx]...), group.Tabs[idx+1:]...)
	group.Tabs = newTabs
	if wasActive {
		newIdx := idx
		if newIdx >= len(newTabs) {
			newIdx = len(newTabs) - 1
		}
		group.ActiveTabID = newTabs[newIdx].ID
	}
	return commitGroup(s, ws.ID, group)
}

func reduceSelectTab(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	group, ok := ws.Groups[a.Group]
	if !ok || group.indexOfTab(a.Tab) == -1 {
		return s
	}
	group.ActiveTabID = a.Tab
	return commitGroup(s, ws.ID, group)
}

func reduceShiftTab(s AppState, groupID PaneGroupID, delta int) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	group, ok := ws.Groups[groupID]
	if !ok || len(group.Tabs) == 0 {
		return s
	}
	idx := group.activeIndex()
	if idx == -1 {
		return s
	}
	n := len(group.Tabs)
	newIdx := ((idx+delta)%n + n) % n
	group.ActiveTabID = group.Tabs[newIdx].ID
	return commitGroup(s, ws.ID, group)
}

func reduceReorderTab(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	group, ok := ws.Groups[a.Group]
	if !ok {
		return s
	}
	idx := group.indexOfTab(a.Tab)
	if idx == -1 {
		return s
	}
	toIndex := a.ToIndex
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(group.Tabs)-1 {
		toIndex = len(group.Tabs) - 1
	}
	if toIndex == idx {
		return s
	}
	tabs := append([]Tab(nil), group.Tabs...)
	moved := tabs[idx]
	tabs = append(tabs[:idx], tabs[idx+1:]...)
	tabs = append(tabs[:toIndex], append([]Tab{moved}, tabs[toIndex:]...)...)
	group.Tabs = tabs
	return commitGroup(s, ws.ID, group)
}

// --- drag actions ---

func reduceDragTabToGroup(s AppState, a Action) AppState {
	if a.FromGroup == a.ToGroup {
		return reduceReorderTab(s, Action{Type: ReorderTab, Group: a.FromGroup, Tab: a.Tab, ToIndex: a.ToIndex})
	}
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	from, ok := ws.Groups[a.FromGroup]
	if !ok {
		return s
	}
	to, ok := ws.Groups[a.ToGroup]
	if !ok {
		return s
	}
	idx := from.indexOfTab(a.Tab)
	if idx == -1 {
		return s
	}
	movedTab := from.Tabs[idx]
	from.Tabs = append(append([]Tab(nil), from.Tabs[:idx]...), from.Tabs[idx+1:]...)

	groups := cloneGroups(ws.Groups)
	root := ws.Root
	if len(from.Tabs) == 0 {
		newRoot, removed := RemoveLeaf(root, a.FromGroup)
		if removed {
			root = newRoot
		}
		delete(groups, a.FromGroup)
	} else {
		if from.ActiveTabID == a.Tab {
			newIdx := idx
			if newIdx >= len(from.Tabs) {
				newIdx = len(from.Tabs) - 1
			}
			from.ActiveTabID = from.Tabs[newIdx].ID
		}
		groups[a.FromGroup] = from
	}

	toIndex := a.ToIndex
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(to.Tabs) {
		toIndex = len(to.Tabs)
	}
	newTabs := append(append([]Tab(nil), to.Tabs[:toIndex]...), append([]Tab{movedTab}, to.Tabs[toIndex:]...)...)
	to.Tabs = newTabs
	to.ActiveTabID = movedTab.ID
	groups[a.ToGroup] = to

	ws.Root = root
	ws.Groups = groups
	ws.FocusedGroupID = a.ToGroup
	return commitWorkspace(s, ws)
}

func reduceDragTabToPane(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	from, ok := ws.Groups[a.FromGroup]
	if !ok {
		return s
	}
	if _, ok := ws.Groups[a.ToGroup]; !ok {
		return s
	}
	idx := from.indexOfTab(a.Tab)
	if idx == -1 {
		return s
	}
	movedTab := from.Tabs[idx]
	from.Tabs = append(append([]Tab(nil), from.Tabs[:idx]...), from.Tabs[idx+1:]...)

	groups := cloneGroups(ws.Groups)
	root := ws.Root
	if len(from.Tabs) == 0 {
		newRoot, removed := RemoveLeaf(root, a.FromGroup)
		if removed {
			root = newRoot
		}
		delete(groups, a.FromGroup)
	} else {
		if from.ActiveTabID == a.Tab {
			newIdx := idx
			if newIdx >= len(from.Tabs) {
				newIdx = len(from.Tabs) - 1
			}
			from.ActiveTabID = from.Tabs[newIdx].ID
		}
		groups[a.FromGroup] = from
	}

	newGroupID := NewPaneGroupID()
	newGroup := PaneGroup{ID: newGroupID, Tabs: []Tab{movedTab}, ActiveTabID: movedTab.ID}
	groups[newGroupID] = newGroup

	dir, insertAfter := splitParamsFromDropDir(a.DropDir)
	newSplitID := NewSplitID()
	newRoot, ok := InsertTreeAt(root, a.ToGroup, NewLeaf(newGroupID), dir, insertAfter, newSplitID)
	if !ok {
		return s
	}

	ws.Root = newRoot
	ws.Groups = groups
	ws.FocusedGroupID = newGroupID
	return commitWorkspace(s, ws)
}

func splitParamsFromDropDir(dir DropDirection) (Direction, bool) {
	switch dir {
	case DirLeft:
		return Horizontal, false
	case DirRight:
		return Horizontal, true
	case DirUp:
		return Vertical, false
	case DirDown:
		return Vertical, true
	default:
		return Horizontal, true
	}
}

// --- pane actions ---

func reduceSplitPane(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	if _, ok := ws.Groups[a.Group]; !ok {
		return s
	}
	dir, insertAfter := splitParamsFromDropDir(a.DropDir)

	newGroupID := a.NewLeafID
	if newGroupID == 0 {
		newGroupID = NewPaneGroupID()
	}
	newSplitID := a.NewSplitID
	if newSplitID == 0 {
		newSplitID = NewSplitID()
	}
	newTabID := a.NewTabID
	if newTabID == 0 {
		newTabID = NewTabID()
	}

	newRoot, ok := SplitLeaf(ws.Root, a.Group, dir, insertAfter, newSplitID, newGroupID)
	if !ok {
		return s
	}
	newGroup := PaneGroup{
		ID:          newGroupID,
		Tabs:        []Tab{{ID: newTabID, Title: "Terminal 1", Kind: TabTerminal}},
		ActiveTabID: newTabID,
	}
	groups := cloneGroups(ws.Groups)
	groups[newGroupID] = newGroup

	ws.Root = newRoot
	ws.Groups = groups
	ws.FocusedGroupID = newGroupID
	return commitWorkspace(s, ws)
}

func reduceClosePane(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	if _, ok := ws.Groups[a.Group]; !ok {
		return s
	}
	leaves := GetLeaves(ws.Root)
	if len(leaves) <= 1 {
		return reduceCloseWorkspace(s, Action{Type: CloseWorkspace, Workspace: ws.ID})
	}

	closingFocused := ws.FocusedGroupID == a.Group
	var fallback PaneGroupID
	if closingFocused {
		// Promote the first leaf of the sibling subtree that takes the
		// closed pane's place, not an arbitrary traversal neighbor.
		if sib, ok := FindSibling(ws.Root, a.Group); ok {
			fallback = GetLeaves(sib)[0]
		}
	}

	newRoot, removed := RemoveLeaf(ws.Root, a.Group)
	if !removed {
		return s
	}
	groups := cloneGroups(ws.Groups)
	delete(groups, a.Group)

	newFocus := ws.FocusedGroupID
	if closingFocused {
		newFocus = fallback
	} else if _, ok := groups[newFocus]; !ok {
		remaining := GetLeaves(newRoot)
		if len(remaining) > 0 {
			newFocus = remaining[0]
		}
	}
	if _, ok := groups[newFocus]; !ok {
		remaining := GetLeaves(newRoot)
		if len(remaining) > 0 {
			newFocus = remaining[0]
		}
	}

	ws.Root = newRoot
	ws.Groups = groups
	ws.FocusedGroupID = newFocus
	return commitWorkspace(s, ws)
}

func indexOf(ids []PaneGroupID, target PaneGroupID) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func reduceResizeSplit(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	newRoot := UpdateRatio(ws.Root, a.Split, a.Ratio)
	if newRoot == ws.Root {
		return s
	}
	ws.Root = newRoot
	return commitWorkspace(s, ws)
}

func reduceFocusGroup(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	if _, ok := ws.Groups[a.Group]; !ok {
		return s
	}
	ws.FocusedGroupID = a.Group
	return commitWorkspace(s, ws)
}

func reduceEqualizeSplits(s AppState) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	ws.Root = Equalize(ws.Root)
	return commitWorkspace(s, ws)
}

func reduceShiftFocus(s AppState, delta int) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	leaves := GetLeaves(ws.Root)
	if len(leaves) == 0 {
		return s
	}
	idx := indexOf(leaves, ws.FocusedGroupID)
	if idx == -1 {
		return s
	}
	n := len(leaves)
	newIdx := ((idx+delta)%n + n) % n
	ws.FocusedGroupID = leaves[newIdx]
	return commitWorkspace(s, ws)
}

func reduceFocusDirection(s AppState, a Action) AppState {
	ws, ok := s.activeWorkspace()
	if !ok {
		return s
	}
	neighbor, ok := GetSpatialNeighbor(ws.Root, ws.FocusedGroupID, a.DropDir)
	if !ok {
		return s
	}
	ws.FocusedGroupID = neighbor
	return commitWorkspace(s, ws)
}

func reduceUpdateTabTitle(s AppState, a Action) AppState {
	for wsID, ws := range s.Workspaces {
		for groupID, group := range ws.Groups {
			idx := group.indexOfTab(a.Tab)
			if idx == -1 {
				continue
			}
			tabs := append([]Tab(nil), group.Tabs...)
			tabs[idx].Title = a.Title
			group.Tabs = tabs

			workspaces := cloneWorkspaces(s.Workspaces)
			groups := cloneGroups(ws.Groups)
			groups[groupID] = group
			ws.Groups = groups
			if ws.FocusedGroupID == groupID && group.ActiveTabID == a.Tab {
				ws.Title = a.Title
			}
			workspaces[wsID] = ws
			s.Workspaces = workspaces
			return s
		}
	}
	return s
}

// --- shared commit helpers ---

func commitGroup(s AppState, wsID WorkspaceID, group PaneGroup) AppState {
	ws := s.Workspaces[wsID]
	groups := cloneGroups(ws.Groups)
	groups[group.ID] = group
	ws.Groups = groups
	if ws.FocusedGroupID == group.ID && group.ActiveTabID != 0 {
		for _, t := range group.Tabs {
			if t.ID == group.ActiveTabID {
				ws.Title = t.Title
				break
			}
		}
	}
	return commitWorkspace(s, ws)
}

func commitWorkspace(s AppState, ws Workspace) AppState {
	workspaces := cloneWorkspaces(s.Workspaces)
	workspaces[ws.ID] = ws
	s.Workspaces = workspaces
	return s
}
