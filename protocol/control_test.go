package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekEnvelopeRoutesByType(t *testing.T) {
	raw, err := Marshal(CreateSession{Type: TypeCreateSession, Cols: 80, Rows: 24})
	require.NoError(t, err)

	env, err := PeekEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeCreateSession, env.Type)

	msg, err := DecodeCreateSession(raw)
	require.NoError(t, err)
	assert.Equal(t, 80, msg.Cols)
	assert.Equal(t, 24, msg.Rows)
}

func TestDriverChangedOmitsNilDriverID(t *testing.T) {
	raw, err := Marshal(DriverChanged{Type: TypeDriverChanged, SessionID: 1, Mode: ModeSingleDriver})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "driverId")

	id := uint32(5)
	raw, err = Marshal(DriverChanged{Type: TypeDriverChanged, SessionID: 1, DriverID: &id, Mode: ModeSingleDriver})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"driverId":5`)
}

func TestDecodeResizeDistinguishesLegacyFromMux(t *testing.T) {
	muxRaw, err := Marshal(Resize{Type: TypeResize, SessionID: 3, Cols: 100, Rows: 40})
	require.NoError(t, err)
	env, err := PeekEnvelope(muxRaw)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), env.SessionID)

	legacyRaw, err := Marshal(LegacyResize{Type: TypeResize, Cols: 100, Rows: 40})
	require.NoError(t, err)
	legacy, err := DecodeLegacyResize(legacyRaw)
	require.NoError(t, err)
	assert.Equal(t, 100, legacy.Cols)
}
