package ptyspawn

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnEchoProducesOutput(t *testing.T) {
	s, err := Spawn(Config{Shell: "/bin/sh", Dir: t.TempDir(), Cols: 80, Rows: 24})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write([]byte("echo hello-pty\n"))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	var out strings.Builder
	deadline := time.After(2 * time.Second)
	for !strings.Contains(out.String(), "hello-pty") {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for output, got %q", out.String())
		default:
		}
		n, err := s.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	assert.Contains(t, out.String(), "hello-pty")
}

func TestResizeNoopAfterClose(t *testing.T) {
	s, err := Spawn(Config{Shell: "/bin/sh", Dir: t.TempDir(), Cols: 80, Rows: 24})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Resize(100, 30))
}

func TestWriteAfterCloseReturnsErrClosedPipe(t *testing.T) {
	s, err := Spawn(Config{Shell: "/bin/sh", Dir: t.TempDir(), Cols: 80, Rows: 24})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
