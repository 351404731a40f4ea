package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bnema/gwayland/internal/logger"
	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("wire: connection closed")

	// ErrIDsExhausted means the client id space is used up.
	ErrIDsExhausted = errors.New("wire: no free object ids")
)

// ProtocolError is a fatal wl_display.error sent by the server.
type ProtocolError struct {
	ObjectID  uint32
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	iface := e.Interface
	if iface == "" {
		iface = "unknown"
	}
	return fmt.Sprintf("wire: protocol error on %s@%d (code %d): %s", iface, e.ObjectID, e.Code, e.Message)
}

// object receives the events addressed to one id.
type object interface {
	iface() string
	dispatch(opcode uint16, d *Decoder) error
}

// zombie marks an id destroyed on the client side whose events must still
// be swallowed because the server may keep sending them.
type zombie struct {
	name string
}

func (z zombie) iface() string { return z.name }

func (zombie) dispatch(uint16, *Decoder) error { return nil }

// Conn is a client connection to a Wayland compositor. It is not safe for
// concurrent dispatch: one goroutine reads and dispatches at a time.
type Conn struct {
	uc *net.UnixConn
	fd int

	// wmu serializes writes to the socket
	wmu sync.Mutex

	mu      sync.Mutex
	objects map[uint32]object
	nextID  uint32
	free    []uint32
	err     error
	closed  bool

	in   []byte
	rbuf []byte
	oob  []byte
}

// NewConn wraps an established unix socket.
func NewConn(uc *net.UnixConn) (*Conn, error) {
	fd, err := socketFd(uc)
	if err != nil {
		return nil, fmt.Errorf("wire: socket descriptor: %w", err)
	}

	c := &Conn{
		uc:      uc,
		fd:      fd,
		objects: make(map[uint32]object),
		nextID:  FirstClientID,
		rbuf:    make([]byte, MaxMessageSize),
		oob:     make([]byte, unix.CmsgSpace(28*4)),
	}
	c.objects[DisplayID] = &display{conn: c}
	return c, nil
}

// Fd returns the socket descriptor, or -1 once closed.
func (c *Conn) Fd() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return -1
	}
	return c.fd
}

// Err returns the fatal error that stopped the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close disconnects from the compositor. Calling it again is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	return c.uc.Close()
}

// fail records err as the fatal connection error, keeping the first one.
func (c *Conn) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	return c.err
}

func (c *Conn) allocID(obj object) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}

	var id uint32
	if n := len(c.free); n > 0 {
		id = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		if c.nextID > MaxClientID {
			return 0, ErrIDsExhausted
		}
		id = c.nextID
		c.nextID++
	}
	c.objects[id] = obj
	return id, nil
}

// releaseID handles wl_display.delete_id: the server no longer refers to
// id so it can be handed out again.
func (c *Conn) releaseID(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.objects[id]; !ok {
		logger.Debug("delete_id for unknown object", "id", id)
		return
	}
	delete(c.objects, id)
	c.free = append(c.free, id)
}

// forget turns id into a zombie until the server acknowledges it.
func (c *Conn) forget(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if obj, ok := c.objects[id]; ok {
		c.objects[id] = zombie{name: obj.iface()}
	}
}

func (c *Conn) lookup(id uint32) object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objects[id]
}

func (c *Conn) send(msg []byte) error {
	if err := c.Err(); err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.uc.Write(msg); err != nil {
		return c.fail(fmt.Errorf("wire: write: %w", err))
	}
	return nil
}

// GetRegistry creates a wl_registry. Attach its listener before the next
// dispatch, the initial globals arrive right after the request.
func (c *Conn) GetRegistry() (*Registry, error) {
	r := &Registry{conn: c}
	id, err := c.allocID(r)
	if err != nil {
		return nil, err
	}
	r.id = id

	if err := c.send(NewEncoder(DisplayID, OpDisplayGetRegistry).Uint(id).Bytes()); err != nil {
		return nil, err
	}
	return r, nil
}

// Sync sends wl_display.sync; done runs when the server has processed all
// requests sent before it.
func (c *Conn) Sync(done func(serial uint32)) error {
	id, err := c.allocID(&callback{done: done})
	if err != nil {
		return err
	}
	return c.send(NewEncoder(DisplayID, OpDisplaySync).Uint(id).Bytes())
}

// Roundtrip blocks until the server has processed every request sent so
// far, dispatching all events that arrive in the meantime. Cancelling ctx
// aborts the wait without breaking the connection.
func (c *Conn) Roundtrip(ctx context.Context) error {
	done := false
	if err := c.Sync(func(uint32) { done = true }); err != nil {
		return err
	}
	if err := c.DispatchPending(); err != nil {
		return err
	}
	if done {
		return nil
	}

	var (
		dmu      sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		dmu.Lock()
		defer dmu.Unlock()
		if !finished {
			_ = c.uc.SetReadDeadline(time.Unix(1, 0))
		}
	})
	defer func() {
		stop()
		dmu.Lock()
		finished = true
		dmu.Unlock()
		_ = c.uc.SetReadDeadline(time.Time{})
	}()

	for !done {
		if err := c.read(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, errTimeout) {
				return ctxErr
			}
			return c.fail(err)
		}
		if err := c.DispatchPending(); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch reads what the socket has to offer and dispatches every complete
// event. It blocks when nothing is readable, so event loops call it only
// once the descriptor polls readable.
func (c *Conn) Dispatch() error {
	if err := c.Err(); err != nil {
		return err
	}
	if err := c.read(); err != nil {
		return c.fail(err)
	}
	return c.DispatchPending()
}

// DispatchPending dispatches events already read from the socket without
// touching the socket itself.
func (c *Conn) DispatchPending() error {
	if err := c.Err(); err != nil {
		return err
	}

	for {
		msg, n, err := Parse(c.in)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			break
		}
		c.in = c.in[n:]

		if err := c.dispatch(msg); err != nil {
			return c.fail(err)
		}
	}

	if len(c.in) == 0 {
		c.in = nil
	}
	return nil
}

func (c *Conn) dispatch(msg Message) error {
	obj := c.lookup(msg.Sender)
	if obj == nil {
		logger.Debug("ignoring event for unknown object", "id", msg.Sender, "opcode", msg.Opcode)
		return nil
	}
	d := NewDecoder(msg.Args)
	if err := obj.dispatch(msg.Opcode, d); err != nil {
		return err
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("%s@%d event %d: %w", obj.iface(), msg.Sender, msg.Opcode, err)
	}
	return nil
}

var errTimeout = errors.New("wire: read timed out")

// read performs a single socket read and appends the data to the input
// buffer.
func (c *Conn) read() error {
	n, oobn, _, _, err := c.uc.ReadMsgUnix(c.rbuf, c.oob)
	if oobn > 0 {
		if closed := closeRights(c.oob[:oobn]); closed > 0 {
			logger.Debug("closed unexpected descriptors", "count", closed)
		}
	}
	if n > 0 {
		c.in = append(c.in, c.rbuf[:n]...)
	}

	switch {
	case err == nil && n == 0:
		return fmt.Errorf("wire: server closed the connection: %w", io.EOF)
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return fmt.Errorf("wire: server closed the connection: %w", io.EOF)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errTimeout
	}
	return fmt.Errorf("wire: read: %w", err)
}

// display handles the events of wl_display.
type display struct {
	conn *Conn
}

func (*display) iface() string { return InterfaceDisplay }

func (dp *display) dispatch(opcode uint16, d *Decoder) error {
	switch opcode {
	case EvDisplayError:
		objectID := d.Uint()
		code := d.Uint()
		message := d.String()
		if err := d.Err(); err != nil {
			return err
		}
		perr := &ProtocolError{ObjectID: objectID, Code: code, Message: message}
		if obj := dp.conn.lookup(objectID); obj != nil {
			perr.Interface = obj.iface()
		}
		logger.Error("display error", "object", objectID, "code", code, "message", message)
		return perr
	case EvDisplayDeleteID:
		id := d.Uint()
		if d.Err() == nil {
			dp.conn.releaseID(id)
		}
	default:
		logger.Debug("unknown wl_display event", "opcode", opcode)
	}
	return nil
}

// callback is a one-shot wl_callback.
type callback struct {
	done func(serial uint32)
}

func (*callback) iface() string { return InterfaceCallback }

func (cb *callback) dispatch(opcode uint16, d *Decoder) error {
	if opcode != EvCallbackDone {
		return nil
	}
	serial := d.Uint()
	if d.Err() == nil && cb.done != nil {
		cb.done(serial)
	}
	return nil
}
