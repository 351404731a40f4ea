// Package gwl is a Wayland client connection with an observable global
// registry and optional event loop integration.
package gwl

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/gwayland/eventloop"
	"github.com/bnema/gwayland/internal/config"
	"github.com/bnema/gwayland/internal/logger"
	"github.com/bnema/gwayland/internal/wire"
	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
)

// Config describes how to connect.
type Config struct {
	// ServerAddress names the display socket. Empty selects the default
	// server: WAYLAND_SOCKET, then the configured or $WAYLAND_DISPLAY name,
	// then wayland-0.
	ServerAddress string

	// Loop receives the connection descriptor for automatic dispatch.
	Loop *eventloop.Loop

	// AttachLoop attaches to the default loop when Loop is nil.
	AttachLoop bool
}

// Connection owns the transport to a display server and its registry.
// A Connection must be used from one goroutine at a time.
type Connection struct {
	address  string
	conn     *wire.Conn
	registry *GlobalRegistry
	loop     *eventloop.Loop
	token    eventloop.Token
	closed   bool
	log      *log.Logger
}

// Connect connects to the server at address, or to the default server
// when address is empty.
func Connect(address string) (*Connection, error) {
	return New(Config{ServerAddress: address})
}

// ConnectWithLoop connects like Connect and watches the connection on
// loop, or on the default loop when loop is nil. When the descriptor cannot
// be watched the connection is still returned, unattached; the caller then
// has to dispatch it manually.
func ConnectWithLoop(loop *eventloop.Loop, address string) (*Connection, error) {
	return New(Config{ServerAddress: address, Loop: loop, AttachLoop: true})
}

// New connects using cfg. On failure it returns an error matching
// ErrNoConnection and nothing stays allocated.
func New(cfg Config) (*Connection, error) {
	c := &Connection{
		address: cfg.ServerAddress,
		log:     logger.With("component", "connection"),
	}

	conn, err := dial(cfg.ServerAddress)
	if err != nil {
		return nil, &ConnectError{Address: cfg.ServerAddress, Err: err}
	}
	c.conn = conn

	registry, err := newGlobalRegistry(conn)
	if err != nil {
		_ = c.Close()
		return nil, &ConnectError{Address: cfg.ServerAddress, Err: err}
	}
	c.registry = registry

	if cfg.Loop != nil || cfg.AttachLoop {
		if err := c.Attach(cfg.Loop); err != nil {
			c.log.Warn("event loop registration failed, dispatch manually", "err", err)
		}
	}

	c.log.Debug("connected", "address", cfg.ServerAddress, "fd", conn.Fd())
	return c, nil
}

func dial(address string) (*wire.Conn, error) {
	if address == "" {
		conn, ok, err := wire.FromEnvSocket()
		if ok {
			return conn, err
		}
		address = config.SocketName()
	}

	path, err := wire.ResolveSocket(address, config.RuntimeDir())
	if err != nil {
		return nil, err
	}
	return wire.Dial(path)
}

// ServerAddress returns the address the connection was created with.
func (c *Connection) ServerAddress() string {
	return c.address
}

// Descriptor returns the socket descriptor, or -1 when not connected.
func (c *Connection) Descriptor() int {
	if c == nil || c.conn == nil || c.closed {
		return -1
	}
	return c.conn.Fd()
}

// Registry returns the connection's global registry.
func (c *Connection) Registry() *GlobalRegistry {
	return c.registry
}

// Attached reports whether the connection is watched by an event loop.
func (c *Connection) Attached() bool {
	return c.token != 0
}

// Attach watches the descriptor on loop, or on the default loop when loop
// is nil, so incoming events are dispatched as they arrive.
func (c *Connection) Attach(loop *eventloop.Loop) error {
	if c.closed {
		return ErrClosed
	}
	if c.token != 0 {
		return errors.New("gwl: connection already attached to a loop")
	}

	if loop == nil {
		l, err := eventloop.Default()
		if err != nil {
			return fmt.Errorf("default loop: %w", err)
		}
		loop = l
	}

	token, err := loop.Watch(c.conn.Fd(), c.Dispatch)
	if err != nil {
		return err
	}
	c.loop, c.token = loop, token
	return nil
}

// Detach stops automatic dispatch. The transport stays usable for explicit
// Dispatch and RoundTrip calls.
func (c *Connection) Detach() error {
	if c.token == 0 {
		return nil
	}
	loop, token := c.loop, c.token
	c.loop, c.token = nil, 0

	if err := loop.Unwatch(token); err != nil && !errors.Is(err, eventloop.ErrClosed) {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

// Dispatch reads and dispatches available events. It blocks when nothing
// is readable; event loops call it when the descriptor polls readable.
func (c *Connection) Dispatch() error {
	if c.closed {
		return ErrClosed
	}
	return c.conn.Dispatch()
}

// DispatchPending dispatches events that were already read.
func (c *Connection) DispatchPending() error {
	if c.closed {
		return ErrClosed
	}
	return c.conn.DispatchPending()
}

// RoundTrip blocks until the server has processed every request sent so
// far; all events received in the meantime, including pending registry
// announcements, are delivered before it returns. The configured
// wayland.roundtrip_timeout bounds the wait when set.
//
// Do not call it from a callback of the loop the connection is attached
// to.
func (c *Connection) RoundTrip() error {
	ctx := context.Background()
	if timeout := config.Get().Wayland.RoundtripTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.RoundTripContext(ctx)
}

// RoundTripContext is RoundTrip bounded by ctx.
func (c *Connection) RoundTripContext(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	return c.conn.Roundtrip(ctx)
}

// Close detaches from the event loop, releases the registry and
// disconnects, skipping whatever was never set up. Further calls are
// no-ops.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	err = multierr.Append(err, c.Detach())
	if c.registry != nil {
		c.registry.destroy()
	}
	if c.conn != nil {
		err = multierr.Append(err, c.conn.Close())
	}

	c.log.Debug("disconnected", "address", c.address)
	return err
}
