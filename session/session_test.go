package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texelation/muxd/protocol"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	binary   [][]byte
	control  []any
	readable bool
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{readable: true}
}

func (f *fakeSubscriber) WriteBinary(sessionID uint32, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.binary = append(f.binary, cp)
	return nil
}

func (f *fakeSubscriber) WriteControl(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = append(f.control, v)
	return nil
}

func (f *fakeSubscriber) controlTypes() []protocol.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []protocol.Type
	for _, c := range f.control {
		switch v := c.(type) {
		case protocol.SessionAttached:
			types = append(types, v.Type)
		case protocol.SessionResized:
			types = append(types, v.Type)
		case protocol.DriverChanged:
			types = append(types, v.Type)
		}
	}
	return types
}

// settle gives a freshly written pty command time to run and its output
// time to reach the broadcaster loop's scrollback append.
func settle() {
	time.Sleep(100 * time.Millisecond)
}

func TestCreateAttachDeliversSessionAttachedBeforeBurst(t *testing.T) {
	table := NewTable(64*1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)

	settle()

	sub := newFakeSubscriber()
	require.NoError(t, table.Attach(sub, 1, id, 80, 24))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.NotEmpty(t, sub.control)
	attached, ok := sub.control[0].(protocol.SessionAttached)
	require.True(t, ok)
	assert.Equal(t, id, attached.SessionID)
}

func TestAttachUnknownSessionReturnsNotFound(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	err := table.Attach(newFakeSubscriber(), 1, 999, 80, 24)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResizeSkipsInitiator(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)

	a, b := newFakeSubscriber(), newFakeSubscriber()
	require.NoError(t, table.Attach(a, 1, id, 80, 24))
	require.NoError(t, table.Attach(b, 2, id, 80, 24))

	require.NoError(t, table.Resize(id, 100, 40, 1))
	assert.NotContains(t, a.controlTypes(), protocol.TypeSessionResized)
	assert.Contains(t, b.controlTypes(), protocol.TypeSessionResized)
}

func TestResizeOutOfRangeIsNoop(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)
	assert.NoError(t, table.Resize(id, 0, 40, 1))
	assert.NoError(t, table.Resize(id, 20000, 40, 1))
}

func TestSingleDriverAdmitsOnlyDriverInput(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)

	require.NoError(t, table.SetMode(1, id, protocol.ModeSingleDriver))
	require.NoError(t, table.Input(1, id, []byte("echo from-driver\n")))
	err = table.Input(2, id, []byte("echo from-other\n"))
	assert.NoError(t, err) // dropped silently, not an error

	settle()
	sub := newFakeSubscriber()
	require.NoError(t, table.Attach(sub, 3, id, 80, 24))
	combined := ""
	for _, b := range sub.binary {
		combined += string(b)
	}
	assert.Contains(t, combined, "from-driver")
	assert.NotContains(t, combined, "from-other")
}

func TestRequestDriverSucceedsOnlyWhenFreeOrHeld(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)
	require.NoError(t, table.SetMode(1, id, protocol.ModeShared))

	granted, err := table.RequestDriver(1, id)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = table.RequestDriver(2, id)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = table.RequestDriver(1, id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestReleaseDriverThenAnotherCanAcquire(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)

	_, err = table.RequestDriver(1, id)
	require.NoError(t, err)
	require.NoError(t, table.ReleaseDriver(1, id))

	granted, err := table.RequestDriver(2, id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestDetachClearsDriverRole(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)
	sub := newFakeSubscriber()
	require.NoError(t, table.Attach(sub, 1, id, 80, 24))
	_, err = table.RequestDriver(1, id)
	require.NoError(t, err)

	require.NoError(t, table.Detach(1, id))
	granted, err := table.RequestDriver(2, id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestDisconnectClientReleasesDriverAndBroadcasts(t *testing.T) {
	table := NewTable(1024, t.TempDir(), nil)
	id, err := table.Create(80, 24)
	require.NoError(t, err)

	driver := newFakeSubscriber()
	other := newFakeSubscriber()
	require.NoError(t, table.Attach(driver, 1, id, 80, 24))
	require.NoError(t, table.Attach(other, 2, id, 80, 24))
	_, err = table.RequestDriver(1, id)
	require.NoError(t, err)

	table.DisconnectClient(1)

	granted, err := table.RequestDriver(2, id)
	require.NoError(t, err)
	assert.True(t, granted)
}
