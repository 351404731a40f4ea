package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultSocketName is used when neither the caller nor the environment
// names a display.
const DefaultSocketName = "wayland-0"

// sun_path holds 108 bytes including the terminating NUL.
const maxSocketPath = 107

var (
	ErrNoRuntimeDir   = errors.New("XDG_RUNTIME_DIR is not set in the environment")
	ErrSocketTooLong  = errors.New("socket path is too long")
	ErrNotUnixSocket  = errors.New("descriptor is not a unix socket")
	ErrInvalidEnvSock = errors.New("invalid WAYLAND_SOCKET")
)

// ResolveSocket turns a display name into a socket path. An empty name
// selects DefaultSocketName. Absolute names are used verbatim, anything
// else is looked up inside runtimeDir.
func ResolveSocket(name, runtimeDir string) (string, error) {
	if name == "" {
		name = DefaultSocketName
	}

	path := name
	if !filepath.IsAbs(name) {
		if runtimeDir == "" {
			return "", ErrNoRuntimeDir
		}
		path = filepath.Join(runtimeDir, name)
	}

	if len(path) > maxSocketPath {
		return "", fmt.Errorf("%w: %q", ErrSocketTooLong, path)
	}
	return path, nil
}

// Dial connects to the compositor socket at path.
func Dial(path string) (*Conn, error) {
	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	c, err := NewConn(uc)
	if err != nil {
		_ = uc.Close()
		return nil, err
	}
	return c, nil
}

// FromEnvSocket adopts an already connected socket handed down by the
// compositor through WAYLAND_SOCKET. The variable is consumed so child
// processes do not inherit it. ok is false when the variable is unset.
func FromEnvSocket() (c *Conn, ok bool, err error) {
	value, set := os.LookupEnv("WAYLAND_SOCKET")
	if !set {
		return nil, false, nil
	}
	_ = os.Unsetenv("WAYLAND_SOCKET")

	fd, err := strconv.Atoi(value)
	if err != nil || fd < 0 {
		return nil, true, fmt.Errorf("%w: %q", ErrInvalidEnvSock, value)
	}
	unix.CloseOnExec(fd)

	f := os.NewFile(uintptr(fd), "wayland-socket")
	// FileConn duplicates the descriptor, so the original is closed either way.
	fc, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrInvalidEnvSock, err)
	}

	uc, isUnix := fc.(*net.UnixConn)
	if !isUnix {
		_ = fc.Close()
		return nil, true, ErrNotUnixSocket
	}

	c, err = NewConn(uc)
	if err != nil {
		_ = uc.Close()
		return nil, true, err
	}
	return c, true, nil
}

// socketFd returns the descriptor backing uc without taking ownership.
func socketFd(uc *net.UnixConn) (int, error) {
	raw, err := uc.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := raw.Control(func(s uintptr) {
		fd = int(s)
	}); err != nil {
		return -1, err
	}
	return fd, nil
}

// closeRights closes every descriptor carried by SCM_RIGHTS in oob. None of
// the interfaces handled here transfer descriptors.
func closeRights(oob []byte) int {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0
	}
	closed := 0
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			_ = unix.Close(fd)
			closed++
		}
	}
	return closed
}
