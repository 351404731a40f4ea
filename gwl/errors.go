package gwl

import (
	"errors"
	"fmt"

	"github.com/bnema/gwayland/internal/wire"
)

var (
	// ErrNoConnection is reported when no transport to the display server
	// could be established.
	ErrNoConnection = errors.New("no connection")

	// ErrClosed is returned by operations on a closed Connection.
	ErrClosed = errors.New("gwl: connection closed")
)

// ConnectError carries the system error behind a failed connection
// attempt. It matches ErrNoConnection with errors.Is.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("unable to connect to server: %v", e.Err)
	}
	return fmt.Sprintf("unable to connect to server %q: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	return []error{ErrNoConnection, e.Err}
}

// ProtocolError is a fatal error reported by the server. Once received the
// connection is unusable and every further operation returns it.
type ProtocolError = wire.ProtocolError
