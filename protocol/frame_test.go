package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBinaryFrameRoundTrips(t *testing.T) {
	frame := EncodeBinaryFrame(42, []byte("hello pty"))
	sid, payload, err := DecodeBinaryFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), sid)
	assert.Equal(t, []byte("hello pty"), payload)
}

func TestEncodeBinaryFrameEmptyPayload(t *testing.T) {
	frame := EncodeBinaryFrame(7, nil)
	sid, payload, err := DecodeBinaryFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), sid)
	assert.Empty(t, payload)
}

func TestDecodeBinaryFrameTooShort(t *testing.T) {
	_, _, err := DecodeBinaryFrame([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}
