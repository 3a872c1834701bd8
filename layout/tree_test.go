package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLeafThenRemoveLeafRestoresTree(t *testing.T) {
	leafID := NewPaneGroupID()
	root := NewLeaf(leafID)

	newLeafID := NewPaneGroupID()
	split, ok := SplitLeaf(root, leafID, Horizontal, true, NewSplitID(), newLeafID)
	require.True(t, ok)
	require.False(t, split.IsLeaf())

	restored, removed := RemoveLeaf(split, newLeafID)
	require.True(t, removed)
	require.True(t, restored.IsLeaf())
	assert.Equal(t, leafID, restored.PaneGroupID())
}

func TestSplitLeafNotFound(t *testing.T) {
	root := NewLeaf(NewPaneGroupID())
	_, ok := SplitLeaf(root, PaneGroupID(999999), Horizontal, true, NewSplitID(), NewPaneGroupID())
	assert.False(t, ok)
}

func TestRemoveLeafCollapsesSplitNotDangling(t *testing.T) {
	a := NewPaneGroupID()
	b := NewPaneGroupID()
	c := NewPaneGroupID()

	root, ok := SplitLeaf(NewLeaf(a), a, Horizontal, true, NewSplitID(), b)
	require.True(t, ok)
	root, ok = SplitLeaf(root, a, Vertical, true, NewSplitID(), c)
	require.True(t, ok)

	// root is now Horizontal(Vertical(a,c), b). Removing b should collapse
	// the outer Horizontal split and leave only the Vertical(a,c) subtree.
	newRoot, removed := RemoveLeaf(root, b)
	require.True(t, removed)
	require.False(t, newRoot.IsLeaf())
	assert.Equal(t, Vertical, newRoot.Direction())
	leaves := GetLeaves(newRoot)
	assert.ElementsMatch(t, []PaneGroupID{a, c}, leaves)
}

func TestRemoveLeafRootIsTarget(t *testing.T) {
	leafID := NewPaneGroupID()
	root := NewLeaf(leafID)
	newRoot, removed := RemoveLeaf(root, leafID)
	assert.True(t, removed)
	assert.Nil(t, newRoot)
}

func TestFindSiblingReturnsOtherChildOfImmediateParent(t *testing.T) {
	a := NewPaneGroupID()
	b := NewPaneGroupID()
	c := NewPaneGroupID()

	root := NewLeaf(a)
	root, ok := SplitLeaf(root, a, Horizontal, true, NewSplitID(), b)
	require.True(t, ok)
	root, ok = SplitLeaf(root, b, Vertical, true, NewSplitID(), c)
	require.True(t, ok)

	sib, ok := FindSibling(root, b)
	require.True(t, ok)
	assert.Equal(t, c, GetLeaves(sib)[0])
}

func TestFindSiblingRootLeafHasNoParent(t *testing.T) {
	root := NewLeaf(NewPaneGroupID())
	_, ok := FindSibling(root, root.PaneGroupID())
	assert.False(t, ok)
}

func TestUpdateRatioClamps(t *testing.T) {
	a, b := NewPaneGroupID(), NewPaneGroupID()
	splitID := NewSplitID()
	root, ok := SplitLeaf(NewLeaf(a), a, Horizontal, true, splitID, b)
	require.True(t, ok)

	updated := UpdateRatio(root, splitID, 0.02)
	assert.InDelta(t, 0.1, updated.Ratio(), 1e-9)

	updated = UpdateRatio(root, splitID, 0.99)
	assert.InDelta(t, 0.9, updated.Ratio(), 1e-9)
}

func TestUpdateRatioPreservesLeaves(t *testing.T) {
	a, b := NewPaneGroupID(), NewPaneGroupID()
	splitID := NewSplitID()
	root, _ := SplitLeaf(NewLeaf(a), a, Horizontal, true, splitID, b)
	before := GetLeaves(root)
	after := GetLeaves(UpdateRatio(root, splitID, 0.3))
	assert.Equal(t, before, after)
}

func TestEqualizeIsIdempotent(t *testing.T) {
	a, b, c := NewPaneGroupID(), NewPaneGroupID(), NewPaneGroupID()
	root, _ := SplitLeaf(NewLeaf(a), a, Horizontal, true, NewSplitID(), b)
	root, _ = SplitLeaf(root, b, Vertical, true, NewSplitID(), c)
	root = UpdateRatio(root, root.SplitID(), 0.2)

	once := Equalize(root)
	twice := Equalize(once)
	assert.Equal(t, GetLeaves(once), GetLeaves(twice))
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || n.IsLeaf() {
			return
		}
		assert.Equal(t, 0.5, n.Ratio())
		walk(n.Left())
		walk(n.Right())
	}
	walk(twice)
}

func TestBuildSpatialMapPartitionsUnitSquare(t *testing.T) {
	a, b, c, d := NewPaneGroupID(), NewPaneGroupID(), NewPaneGroupID(), NewPaneGroupID()
	root, _ := SplitLeaf(NewLeaf(a), a, Horizontal, true, NewSplitID(), b)
	root, _ = SplitLeaf(root, a, Vertical, true, NewSplitID(), c)
	root, _ = SplitLeaf(root, b, Vertical, true, NewSplitID(), d)

	spatial := BuildSpatialMap(root)
	require.Len(t, spatial, 4)

	total := 0.0
	for _, rect := range spatial {
		total += (rect.Right - rect.Left) * (rect.Bottom - rect.Top)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

// TestFourPaneGridNeighbors reproduces spec.md §8 scenario 3: a 2x2 grid
// built by splitting g1 right, then focusing g1 and splitting down, then
// focusing the top-right leaf and splitting down.
func TestFourPaneGridNeighbors(t *testing.T) {
	g1 := NewPaneGroupID()
	b := NewPaneGroupID() // top-right before the second split
	c := NewPaneGroupID() // bottom-left
	d := NewPaneGroupID() // bottom-right

	root, ok := SplitLeaf(NewLeaf(g1), g1, Horizontal, true, NewSplitID(), b)
	require.True(t, ok)
	root, ok = SplitLeaf(root, g1, Vertical, true, NewSplitID(), c)
	require.True(t, ok)
	root, ok = SplitLeaf(root, b, Vertical, true, NewSplitID(), d)
	require.True(t, ok)

	a, top, bottomLeft, bottomRight := g1, b, c, d

	neighbor, ok := GetSpatialNeighbor(root, bottomRight, DirLeft)
	require.True(t, ok)
	assert.Equal(t, bottomLeft, neighbor)

	neighbor, ok = GetSpatialNeighbor(root, bottomRight, DirUp)
	require.True(t, ok)
	assert.Equal(t, top, neighbor)

	neighbor, ok = GetSpatialNeighbor(root, top, DirLeft)
	require.True(t, ok)
	assert.Equal(t, a, neighbor)

	_, ok = GetSpatialNeighbor(root, a, DirLeft)
	assert.False(t, ok)
}
