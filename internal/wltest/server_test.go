package wltest

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/gwayland/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, s *Server) *wire.Conn {
	t.Helper()
	conn, err := wire.Dial(s.SocketPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundtrip(t *testing.T, conn *wire.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Roundtrip(ctx))
}

func TestServerAnnouncesGlobals(t *testing.T) {
	s := NewTestServer(t)
	conn := dial(t, s)

	reg, err := conn.GetRegistry()
	require.NoError(t, err)

	var got []Global
	reg.SetListener(func(name uint32, iface string, version uint32) {
		got = append(got, Global{Name: name, Interface: iface, Version: version})
	}, nil)

	roundtrip(t, conn)
	assert.Equal(t, s.Globals(), got)
	assert.Equal(t, 1, s.Syncs())
	assert.Equal(t, 1, s.Accepted())
	assert.Equal(t, 1, s.Clients())
}

func TestServerNamesGlobalsFromOne(t *testing.T) {
	s := NewServer("/unused", Global{Interface: "a", Version: 1}, Global{Name: 99, Interface: "b", Version: 2})

	globals := s.Globals()
	require.Len(t, globals, 2)
	assert.Equal(t, uint32(1), globals[0].Name)
	assert.Equal(t, uint32(2), globals[1].Name)

	added := s.AddGlobal("c", 1)
	assert.Equal(t, uint32(3), added.Name)
	assert.True(t, s.RemoveGlobal(2))
	assert.False(t, s.RemoveGlobal(2))
	assert.Len(t, s.Globals(), 2)
}

func TestServerTracksDisconnects(t *testing.T) {
	s := NewTestServer(t)

	conn, err := wire.Dial(s.SocketPath())
	require.NoError(t, err)
	roundtrip(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return s.Disconnects() == 1 && s.Clients() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewTestServer(t)
	dial(t, s)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
	assert.Zero(t, s.Clients())
}
