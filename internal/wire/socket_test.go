package wire

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestResolveSocket(t *testing.T) {
	tests := []struct {
		name       string
		display    string
		runtimeDir string
		want       string
		wantErr    error
	}{
		{name: "default name", runtimeDir: "/run/user/1000", want: "/run/user/1000/wayland-0"},
		{name: "relative name", display: "wayland-1", runtimeDir: "/run/user/1000", want: "/run/user/1000/wayland-1"},
		{name: "absolute path", display: "/tmp/compositor.sock", want: "/tmp/compositor.sock"},
		{name: "missing runtime dir", display: "wayland-1", wantErr: ErrNoRuntimeDir},
		{name: "path too long", display: "wayland-1", runtimeDir: "/" + strings.Repeat("x", 120), wantErr: ErrSocketTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSocket(tt.display, tt.runtimeDir)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialMissingSocket(t *testing.T) {
	_, err := Dial("/nonexistent/gwl-test/wayland-0")
	assert.Error(t, err)
}

func TestFromEnvSocket(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv("WAYLAND_SOCKET", "")
		require.NoError(t, os.Unsetenv("WAYLAND_SOCKET"))

		c, ok, err := FromEnvSocket()
		assert.Nil(t, c)
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	t.Run("inherited socket", func(t *testing.T) {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		require.NoError(t, err)
		defer unix.Close(fds[1])

		t.Setenv("WAYLAND_SOCKET", strconv.Itoa(fds[0]))
		c, ok, err := FromEnvSocket()
		require.NoError(t, err)
		require.True(t, ok)
		defer c.Close()

		assert.GreaterOrEqual(t, c.Fd(), 0)
		_, set := os.LookupEnv("WAYLAND_SOCKET")
		assert.False(t, set, "WAYLAND_SOCKET must not leak to children")

		// The inherited descriptor itself was handed over and closed.
		_, err = unix.FcntlInt(uintptr(fds[0]), unix.F_GETFD, 0)
		assert.ErrorIs(t, err, unix.EBADF)
	})

	t.Run("garbage value", func(t *testing.T) {
		t.Setenv("WAYLAND_SOCKET", "sock")
		c, ok, err := FromEnvSocket()
		assert.Nil(t, c)
		assert.True(t, ok)
		assert.ErrorIs(t, err, ErrInvalidEnvSock)
	})

	t.Run("not a socket", func(t *testing.T) {
		var p [2]int
		require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
		defer unix.Close(p[1])

		t.Setenv("WAYLAND_SOCKET", strconv.Itoa(p[0]))
		c, ok, err := FromEnvSocket()
		assert.Nil(t, c)
		assert.True(t, ok)
		assert.Error(t, err)
	})
}
