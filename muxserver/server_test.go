package muxserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texelation/muxd/client"
	"github.com/texelation/muxd/layout"
	"github.com/texelation/muxd/protocol"
	"github.com/texelation/muxd/session"
)

type fixedWorkspace struct{ s layout.AppState }

func (f fixedWorkspace) Current() layout.AppState { return f.s }

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	sessions := session.NewTable(64*1024, t.TempDir(), nil)
	clients := client.NewRegistry()
	srv := New("", sessions, clients, fixedWorkspace{layout.NewInitialState()})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWS)
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return hs, srv
}

func dial(t *testing.T, hs *httptest.Server, query string) net.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws" + query
	conn, _, _, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readControl(t *testing.T, conn net.Conn) protocol.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	require.Equal(t, ws.OpText, op)
	env, err := protocol.PeekEnvelope(data)
	require.NoError(t, err)
	return env
}

func readControlRaw(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	return data
}

func TestHandshakeSendsWorkspaceSnapshotFirst(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs, "?mode=mux&cols=80&rows=24")

	env := readControl(t, conn)
	assert.Equal(t, protocol.TypeWorkspaceSnapshot, env.Type)
}

func TestCreateSessionRepliesInOrder(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs, "?mode=mux&cols=80&rows=24")
	_ = readControl(t, conn) // workspace_snapshot

	for i := 0; i < 3; i++ {
		raw, err := protocol.Marshal(protocol.CreateSession{Type: protocol.TypeCreateSession, Cols: 80, Rows: 24})
		require.NoError(t, err)
		require.NoError(t, wsutil.WriteClientText(conn, raw))
	}

	var ids []uint32
	for i := 0; i < 3; i++ {
		raw := readControlRaw(t, conn)
		msg, err := unmarshalSessionCreated(raw)
		require.NoError(t, err)
		ids = append(ids, msg.SessionID)
	}
	assert.Equal(t, []uint32{1, 2, 3}, ids)
}

func TestAttachThenSessionAttachedBeforeBinaryBurst(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs, "?mode=mux&cols=80&rows=24")
	_ = readControl(t, conn)

	createRaw, _ := protocol.Marshal(protocol.CreateSession{Type: protocol.TypeCreateSession, Cols: 80, Rows: 24})
	require.NoError(t, wsutil.WriteClientText(conn, createRaw))
	created, err := unmarshalSessionCreated(readControlRaw(t, conn))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond) // let the shell produce a prompt

	attachRaw, _ := protocol.Marshal(protocol.AttachSession{Type: protocol.TypeAttachSession, SessionID: created.SessionID, Cols: 80, Rows: 24})
	require.NoError(t, wsutil.WriteClientText(conn, attachRaw))

	env := readControl(t, conn)
	assert.Equal(t, protocol.TypeSessionAttached, env.Type)
}

func unmarshalSessionCreated(raw []byte) (protocol.SessionCreated, error) {
	var v protocol.SessionCreated
	err := json.Unmarshal(raw, &v)
	return v, err
}

func TestLegacyModeAcceptsResizeAndKeepsStreaming(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs, "?cols=80&rows=24")

	resizeRaw, _ := protocol.Marshal(protocol.LegacyResize{Type: protocol.TypeResize, Cols: 100, Rows: 40})
	require.NoError(t, wsutil.WriteClientText(conn, resizeRaw))
	// No reply is defined for legacy resize; just assert the write didn't
	// error and the connection stays open for a follow-up binary write.
	require.NoError(t, wsutil.WriteClientBinary(conn, []byte("echo legacy\n")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	assert.Equal(t, ws.OpBinary, op)
	assert.NotEmpty(t, data)
}

func TestClientJoinedBroadcastToExistingReadyPeer(t *testing.T) {
	hs, _ := newTestServer(t)
	first := dial(t, hs, "?mode=mux&cols=80&rows=24")
	_ = readControl(t, first) // workspace_snapshot

	_ = dial(t, hs, "?mode=mux&cols=80&rows=24")

	env := readControl(t, first)
	assert.Equal(t, protocol.TypeClientJoined, env.Type)
}
