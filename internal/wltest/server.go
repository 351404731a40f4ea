// Package wltest provides an in-process compositor that speaks just enough
// of the core Wayland protocol to exercise a client: wl_display.sync,
// wl_display.get_registry and the wl_registry global announcements.
package wltest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bnema/gwayland/internal/logger"
	"github.com/bnema/gwayland/internal/wire"
	"golang.org/x/sync/errgroup"
)

// Global is a capability advertised by the server.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// DefaultGlobals mirrors what a small desktop compositor advertises.
var DefaultGlobals = []Global{
	{Interface: "wl_compositor", Version: 6},
	{Interface: "wl_shm", Version: 1},
	{Interface: "wl_output", Version: 4},
	{Interface: "wl_seat", Version: 9},
	{Interface: "xdg_wm_base", Version: 6},
}

// Server is a fake compositor listening on a unix socket.
type Server struct {
	mu         sync.Mutex
	listener   *net.UnixListener
	socketPath string
	globals    []Global
	nextName   uint32
	serial     uint32
	clients    map[*client]struct{}
	cancel     context.CancelFunc
	group      *errgroup.Group
	running    bool

	accepted    int
	disconnects int
	syncs       int
}

type client struct {
	conn       *net.UnixConn
	wmu        sync.Mutex
	registries []uint32
}

// NewServer creates a server that will listen on socketPath and announce
// globals in the given order. Names are assigned from 1.
func NewServer(socketPath string, globals ...Global) *Server {
	s := &Server{
		socketPath: socketPath,
		clients:    make(map[*client]struct{}),
		nextName:   1,
	}
	for _, g := range globals {
		g.Name = s.nextName
		s.nextName++
		s.globals = append(s.globals, g)
	}
	return s
}

// NewTestServer starts a server on a fresh runtime directory, points
// XDG_RUNTIME_DIR and WAYLAND_DISPLAY at it and stops it on cleanup.
// Without globals it announces DefaultGlobals.
func NewTestServer(tb testing.TB, globals ...Global) *Server {
	tb.Helper()

	// t.TempDir paths can exceed the sun_path limit
	dir, err := os.MkdirTemp("", "gwl-")
	if err != nil {
		tb.Fatalf("create runtime dir: %v", err)
	}
	tb.Cleanup(func() { _ = os.RemoveAll(dir) })

	if len(globals) == 0 {
		globals = DefaultGlobals
	}

	s := NewServer(filepath.Join(dir, "wayland-test"), globals...)
	if err := s.Start(); err != nil {
		tb.Fatalf("start test compositor: %v", err)
	}
	tb.Cleanup(func() { _ = s.Stop() })

	tb.Setenv("XDG_RUNTIME_DIR", dir)
	tb.Setenv("WAYLAND_DISPLAY", "wayland-test")
	return s
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// SocketName returns the socket name relative to its runtime directory.
func (s *Server) SocketName() string {
	return filepath.Base(s.socketPath)
}

// Start begins accepting clients.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.socketPath, Net: "unix"})
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error { return s.acceptConnections(ctx) })

	logger.Debugf("test compositor listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener and every client and waits for the handlers.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	_ = s.listener.Close()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	group := s.group
	s.mu.Unlock()

	err := group.Wait()
	_ = os.RemoveAll(s.socketPath)
	return err
}

// AddGlobal advertises a new global to every bound registry.
func (s *Server) AddGlobal(iface string, version uint32) Global {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := Global{Name: s.nextName, Interface: iface, Version: version}
	s.nextName++
	s.globals = append(s.globals, g)

	for c := range s.clients {
		for _, reg := range c.registries {
			s.send(c, globalEvent(reg, g))
		}
	}
	return g
}

// RemoveGlobal withdraws a global. It reports false for unknown names.
func (s *Server) RemoveGlobal(name uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, g := range s.globals {
		if g.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.globals = append(s.globals[:idx], s.globals[idx+1:]...)

	for c := range s.clients {
		for _, reg := range c.registries {
			s.send(c, wire.NewEncoder(reg, wire.EvRegistryGlobalRemove).Uint(name).Bytes())
		}
	}
	return true
}

// AnnounceRemoval sends global_remove for name without touching the global
// list, the way a misbehaving compositor would.
func (s *Server) AnnounceRemoval(name uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		for _, reg := range c.registries {
			s.send(c, wire.NewEncoder(reg, wire.EvRegistryGlobalRemove).Uint(name).Bytes())
		}
	}
}

// PostError sends a fatal wl_display.error to every client and hangs up.
func (s *Server) PostError(objectID, code uint32, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		s.send(c, wire.NewEncoder(wire.DisplayID, wire.EvDisplayError).
			Uint(objectID).Uint(code).String(message).Bytes())
		_ = c.conn.CloseWrite()
	}
}

// Globals returns the currently advertised globals.
func (s *Server) Globals() []Global {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Global(nil), s.globals...)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Accepted returns how many clients ever connected.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Disconnects returns how many clients went away.
func (s *Server) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// Syncs returns how many wl_display.sync requests were handled.
func (s *Server) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}

func (s *Server) acceptConnections(ctx context.Context) error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Errorf("Failed to accept connection: %v", err)
			continue
		}

		c := &client{conn: conn}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.clients[c] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.group.Go(func() error {
			s.handleConnection(c)
			return nil
		})
	}
}

func (s *Server) handleConnection(c *client) {
	defer func() {
		_ = c.conn.Close()
		s.mu.Lock()
		delete(s.clients, c)
		s.disconnects++
		s.mu.Unlock()
	}()

	logger.Debug("test compositor: client connected")

	var pending []byte
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}
		for {
			msg, used, perr := wire.Parse(pending)
			if perr != nil {
				logger.Debugf("test compositor: %v", perr)
				return
			}
			if used == 0 {
				break
			}
			pending = pending[used:]
			s.handleRequest(c, msg)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debugf("test compositor: read error: %v", err)
			}
			return
		}
	}
}

func (s *Server) handleRequest(c *client, msg wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := wire.NewDecoder(msg.Args)

	if msg.Sender == wire.DisplayID {
		switch msg.Opcode {
		case wire.OpDisplaySync:
			id := d.Uint()
			if d.Err() != nil {
				return
			}
			s.syncs++
			s.serial++
			s.send(c, wire.NewEncoder(id, wire.EvCallbackDone).Uint(s.serial).Bytes())
			s.send(c, wire.NewEncoder(wire.DisplayID, wire.EvDisplayDeleteID).Uint(id).Bytes())
		case wire.OpDisplayGetRegistry:
			id := d.Uint()
			if d.Err() != nil {
				return
			}
			c.registries = append(c.registries, id)
			for _, g := range s.globals {
				s.send(c, globalEvent(id, g))
			}
		}
		return
	}

	logger.Debug("test compositor: ignoring request", "object", msg.Sender, "opcode", msg.Opcode)
}

// send writes one event; callers hold s.mu so events keep their order.
func (s *Server) send(c *client, msg []byte) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(msg); err != nil {
		logger.Debugf("test compositor: write failed: %v", err)
	}
}

func globalEvent(registry uint32, g Global) []byte {
	return wire.NewEncoder(registry, wire.EvRegistryGlobal).
		Uint(g.Name).String(g.Interface).Uint(g.Version).Bytes()
}
